// Package console is the session layer behind list and detail screens. It
// owns the view registry, routes mutations through the remote service first
// and then through the propagator, and caches totals and details.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arthur-debert/ledgerview/internal/validation"
	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/ledgerview/propagate"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/ledgerview/views"
	"github.com/arthur-debert/ledgerview/types"
)

// Console is one client session against a remote service
type Console struct {
	svc            remote.Service
	registry       *views.Registry
	propagator     *propagate.Propagator
	details        *detailCache
	totals         *totalsCache
	logger         *slog.Logger
	pageSize       int
	filterMatching bool

	// loads serializes page fetches per view so cursors are not reused
	loadsMu sync.Mutex
	loads   map[string]*sync.Mutex
}

// Option is a function that modifies Console configuration
type Option func(*Console)

// WithLogger sets the session logger; it is also handed to the propagator
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageSize sets the number of rows requested per page
func WithPageSize(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithFilterMatching enables filter-aware propagation
func WithFilterMatching(enabled bool) Option {
	return func(c *Console) {
		c.filterMatching = enabled
	}
}

// New creates a console session over svc
func New(svc remote.Service, opts ...Option) *Console {
	c := &Console{
		svc:      svc,
		registry: views.NewRegistry(),
		details:  newDetailCache(),
		totals:   newTotalsCache(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		pageSize: remote.DefaultPageSize,
		loads:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.propagator = propagate.New(c.registry,
		propagate.WithInvalidator(c.details),
		propagate.WithInvalidator(c.totals),
		propagate.WithLogger(c.logger),
		propagate.WithFilterMatching(c.filterMatching),
	)
	return c
}

// Registry exposes the session's view registry
func (c *Console) Registry() *views.Registry {
	return c.registry
}

// Propagator exposes the session's propagator, for mutations that arrive
// from outside the console (for instance a push channel)
func (c *Console) Propagator() *propagate.Propagator {
	return c.propagator
}

// Create stores rec remotely and, once the server accepts it, inserts the
// server snapshot into every open view
func (c *Console) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	log := c.opLogger("create", "kind", rec.Kind)

	created, err := c.svc.Create(ctx, rec)
	if err != nil {
		log.Error("create failed", "error", err)
		return types.Record{}, fmt.Errorf("create %s: %w", rec.Kind, err)
	}
	c.propagator.Insert(created)
	log.Info("record created", "id", created.ID, "version", created.Version)
	return created, nil
}

// Edit applies patch remotely and then to every open view
func (c *Console) Edit(ctx context.Context, kind types.Kind, id int64, patch types.Patch) (types.Record, error) {
	log := c.opLogger("edit", "kind", kind, "id", id)

	prior, known := c.details.get(types.RecordRef{Kind: kind, ID: id})
	updated, err := c.svc.Update(ctx, kind, id, patch)
	if err != nil {
		log.Error("edit failed", "error", err)
		return types.Record{}, fmt.Errorf("edit %s %d: %w", kind, id, err)
	}

	if known {
		// the server snapshot wins over the request, e.g. for normalized fields
		patch = types.Diff(prior, updated)
	} else {
		patch.Version = updated.Version
		patch.UpdatedAt = updated.UpdatedAt
	}
	c.propagator.Update(kind, id, patch)
	log.Info("record updated", "version", updated.Version)
	return updated, nil
}

// Delete removes the record remotely and then from every open view
func (c *Console) Delete(ctx context.Context, kind types.Kind, id int64) error {
	log := c.opLogger("delete", "kind", kind, "id", id)

	version, err := c.svc.Delete(ctx, kind, id)
	if err != nil {
		log.Error("delete failed", "error", err)
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	c.propagator.RemoveVersion(kind, id, version)
	log.Info("record deleted", "version", version)
	return nil
}

// Detail returns a single record, from cache when the session has already
// fetched it and no mutation has touched it since
func (c *Console) Detail(ctx context.Context, kind types.Kind, id int64) (types.Record, error) {
	ref := types.RecordRef{Kind: kind, ID: id}
	if rec, ok := c.details.get(ref); ok {
		return rec, nil
	}
	rec, err := c.svc.Get(ctx, kind, id)
	if err != nil {
		return types.Record{}, fmt.Errorf("detail %s %d: %w", kind, id, err)
	}
	c.details.put(rec)
	return rec, nil
}

// Totals returns the group totals to display for a grouped view: the
// optimistic list when one is set, otherwise the server list
func (c *Console) Totals(ctx context.Context, entity types.EntityType, filters types.Filters, mode types.GroupingMode) ([]types.GroupTotals, error) {
	k := newTotalsKey(entity, filters, mode)
	fetched, optimistic, ok := c.totals.get(k)
	if !ok {
		list, err := c.svc.FetchGroupTotals(ctx, entity, filters, mode)
		if err != nil {
			return nil, fmt.Errorf("totals %s by %s: %w", entity, mode, err)
		}
		c.totals.put(k, list)
		fetched = list
	}
	return grouping.SelectTotals(fetched, optimistic), nil
}

// SetOptimisticTotals replaces the displayed totals for a query until it is
// cleared by passing nil
func (c *Console) SetOptimisticTotals(entity types.EntityType, filters types.Filters, mode types.GroupingMode, list []types.GroupTotals) {
	c.totals.setOptimistic(newTotalsKey(entity, filters, mode), list)
}

// Subscribe opens a view. Subscriptions with equal keys share one cache.
func (c *Console) Subscribe(key types.ViewKey) (*Subscription, error) {
	if err := validation.ValidateViewKey(key); err != nil {
		return nil, fmt.Errorf("invalid view: %w", err)
	}
	key = key.Normalize()
	s := &Subscription{
		console:  c,
		key:      key,
		cache:    c.registry.GetOrCreate(key),
		collapse: &grouping.CollapseState{},
	}
	s.unsubscribe = c.propagator.OnInsert(s.onInsert)
	c.logger.Debug("view subscribed", "view", key.String())
	return s, nil
}

func (c *Console) loadLock(key types.ViewKey) *sync.Mutex {
	c.loadsMu.Lock()
	defer c.loadsMu.Unlock()
	id := key.ID()
	mu, ok := c.loads[id]
	if !ok {
		mu = &sync.Mutex{}
		c.loads[id] = mu
	}
	return mu
}

func (c *Console) opLogger(op string, args ...any) *slog.Logger {
	return c.logger.With(append([]any{"op", op, "op_id", uuid.NewString()}, args...)...)
}
