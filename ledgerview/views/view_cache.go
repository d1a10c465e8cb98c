// Package views holds the page-accumulated row caches backing each open view
// and the registry that maps view keys to caches.
package views

import (
	"slices"

	"github.com/arthur-debert/ledgerview/types"
)

// ViewCache is the ordered row sequence of one view. Rows stay sorted by the
// key's sort spec between mutations. A cache is created empty, filled by page
// fetches and then mutated in place by the propagator.
//
// ViewCache is not safe for concurrent use on its own; the Registry guards
// every cache it owns.
type ViewCache struct {
	key       types.ViewKey
	rows      []types.Record
	cursor    string
	exhausted bool
	loaded    bool
	// drift counts rows spliced in minus rows removed since the last page,
	// which is how far the server's next page has shifted
	drift int
}

func newViewCache(key types.ViewKey) *ViewCache {
	return &ViewCache{key: key}
}

// Key returns the view key the cache was created for
func (c *ViewCache) Key() types.ViewKey {
	return c.key
}

// Sort returns the sort spec of the view
func (c *ViewCache) Sort() types.SortSpec {
	return c.key.Sort
}

// Entity returns the entity type of the view
func (c *ViewCache) Entity() types.EntityType {
	return c.key.Entity
}

// Rows returns a copy of the cached rows in order
func (c *ViewCache) Rows() []types.Record {
	return slices.Clone(c.rows)
}

// Len returns the number of cached rows
func (c *ViewCache) Len() int {
	return len(c.rows)
}

// Cursor returns the continuation token of the next page to fetch
func (c *ViewCache) Cursor() string {
	return c.cursor
}

// Exhausted reports whether the last page has been fetched
func (c *ViewCache) Exhausted() bool {
	return c.exhausted
}

// Drift returns the net number of rows inserted into or removed from the
// loaded window since the cursor was issued
func (c *ViewCache) Drift() int {
	return c.drift
}

// Partial reports whether later pages may still hold rows that sort after
// the cached ones
func (c *ViewCache) Partial() bool {
	return !c.exhausted
}

// Loaded reports whether at least one page has been appended
func (c *ViewCache) Loaded() bool {
	return c.loaded
}

// IndexOf returns the position of the row with the given identity, or -1
func (c *ViewCache) IndexOf(ref types.RecordRef) int {
	for i, r := range c.rows {
		if r.Kind == ref.Kind && r.ID == ref.ID {
			return i
		}
	}
	return -1
}

// At returns the row at index i
func (c *ViewCache) At(i int) types.Record {
	return c.rows[i]
}

// AppendPage appends a fetched page in arrival order. The page is not
// re-sorted. A row whose identity is already cached is moved to its place in
// the page, since the server's position is the one the view order needs.
// It returns the number of rows that were not cached before.
func (c *ViewCache) AppendPage(rows []types.Record, nextCursor string, done bool) int {
	appended := 0
	for _, r := range rows {
		if i := c.IndexOf(r.Ref()); i >= 0 {
			c.rows = slices.Delete(c.rows, i, i+1)
		} else {
			appended++
		}
		c.rows = append(c.rows, r)
	}
	c.cursor = nextCursor
	c.exhausted = done
	c.loaded = true
	c.drift = 0
	return appended
}

// Reset drops all rows and paging state ahead of a full refetch
func (c *ViewCache) Reset() {
	c.rows = nil
	c.cursor = ""
	c.exhausted = false
	c.loaded = false
	c.drift = 0
}

// InsertAt splices r in at index i
func (c *ViewCache) InsertAt(i int, r types.Record) {
	c.rows = slices.Insert(c.rows, i, r)
	c.drift++
}

// ReplaceAt swaps the row at index i for r without moving it
func (c *ViewCache) ReplaceAt(i int, r types.Record) {
	c.rows[i] = r
}

// RemoveAt deletes the row at index i
func (c *ViewCache) RemoveAt(i int) {
	c.rows = slices.Delete(c.rows, i, i+1)
	c.drift--
}

// Reorder lets fn permute the rows in place. fn must not add or drop rows.
func (c *ViewCache) Reorder(fn func(rows []types.Record)) {
	fn(c.rows)
}

// View returns the cached rows without copying. Callers must not retain or
// modify the returned slice.
func (c *ViewCache) View() []types.Record {
	return c.rows
}
