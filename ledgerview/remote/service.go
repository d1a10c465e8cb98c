// Package remote defines the contract of the data service the view caches
// sit in front of, together with the query processing shared by the
// bundled service implementations.
package remote

import (
	"context"
	"errors"

	"github.com/arthur-debert/ledgerview/types"
)

var (
	// ErrNotFound is returned when no record has the requested identity
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRecord is returned when a record or patch fails validation
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidCursor is returned for page cursors the service did not issue
	ErrInvalidCursor = errors.New("invalid cursor")
)

const (
	// DefaultPageSize is used when a page request has no limit
	DefaultPageSize = 50
	// MaxPageSize caps the rows returned by one page
	MaxPageSize = 500
)

// PageRequest asks for one page of a view
type PageRequest struct {
	Entity   types.EntityType
	Filters  types.Filters
	Sort     types.SortSpec
	Grouping types.GroupingMode
	// Cursor is the NextCursor of the previous page, empty for the first page
	Cursor string
	Limit  int
}

// RequestFor builds the first-page request of a view
func RequestFor(key types.ViewKey, limit int) PageRequest {
	key = key.Normalize()
	return PageRequest{
		Entity:   key.Entity,
		Filters:  key.Filters,
		Sort:     key.Sort,
		Grouping: key.Grouping,
		Limit:    limit,
	}
}

// Page is one ordered slice of a view. When a grouping mode is active, rows
// sharing a group key are contiguous.
type Page struct {
	Rows       []types.Record
	NextCursor string
	Done       bool
}

// Service is the remote data service. Mutations return the resulting
// snapshot (or deletion version) so the caller can propagate it to the view
// caches.
type Service interface {
	// FetchPage returns one page of the view described by req
	FetchPage(ctx context.Context, req PageRequest) (Page, error)

	// Get returns a single record
	Get(ctx context.Context, kind types.Kind, id int64) (types.Record, error)

	// Create stores a new record; the service assigns ID, Version and timestamps
	Create(ctx context.Context, rec types.Record) (types.Record, error)

	// Update applies a patch and returns the new snapshot
	Update(ctx context.Context, kind types.Kind, id int64, patch types.Patch) (types.Record, error)

	// Delete removes a record and returns the version assigned to the deletion
	Delete(ctx context.Context, kind types.Kind, id int64) (int64, error)

	// FetchGroupTotals aggregates the records of a view per group key
	FetchGroupTotals(ctx context.Context, entity types.EntityType, filters types.Filters, mode types.GroupingMode) ([]types.GroupTotals, error)

	// Close releases any resources held by the service
	Close() error
}
