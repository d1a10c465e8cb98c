// Package propagate applies single-record mutations to every open view of the
// record's entity type, keeping each view's sort order intact, so views stay
// consistent without a refetch after each change.
//
// The three operations are total: they perform no I/O and cannot fail.
// Duplicate inserts and updates or removals of absent records are silent
// no-ops, since the usual cause is an optimistic update and a background
// refetch converging on the same outcome.
//
// Out-of-order delivery is resolved by last-write-wins on the server
// version carried by records and patches: an update older than the cached
// row is ignored, and a removal leaves a tombstone that rejects inserts of
// snapshots that are not newer. Version 0 disables both checks.
package propagate

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/ledgerview/order"
	"github.com/arthur-debert/ledgerview/ledgerview/views"
	"github.com/arthur-debert/ledgerview/types"
)

// InsertEvent is emitted after a record has been inserted. GroupKeys holds
// the record's derived group key under every grouping mode so a surface can,
// for example, expand the collapsed group that now contains the record.
type InsertEvent struct {
	Record    types.Record
	GroupKeys map[types.GroupingMode]string
	// Views is the number of view caches the record was added to
	Views int
}

// GroupKey returns the derived group key for mode
func (e InsertEvent) GroupKey(mode types.GroupingMode) string {
	return e.GroupKeys[mode.Normalize()]
}

// InsertListener receives insert notifications
type InsertListener func(InsertEvent)

// Propagator applies record mutations to every matching view in a registry
type Propagator struct {
	registry       *views.Registry
	invalidators   []Invalidator
	logger         *slog.Logger
	filterMatching bool

	// mu serializes whole operations, including tombstone bookkeeping
	mu         sync.Mutex
	tombstones map[types.RecordRef]int64

	listenersMu sync.Mutex
	listeners   map[int]InsertListener
	nextID      int
}

// New creates a propagator over registry
func New(registry *views.Registry, opts ...Option) *Propagator {
	p := &Propagator{
		registry:   registry,
		logger:     discardLogger(),
		tombstones: make(map[types.RecordRef]int64),
		listeners:  make(map[int]InsertListener),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the registry the propagator writes to
func (p *Propagator) Registry() *views.Registry {
	return p.registry
}

// OnInsert registers a listener for insert notifications. The returned
// function unregisters it and is safe to call more than once.
func (p *Propagator) OnInsert(listener InsertListener) (unsubscribe func()) {
	p.listenersMu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	p.listenersMu.Unlock()

	return func() {
		p.listenersMu.Lock()
		delete(p.listeners, id)
		p.listenersMu.Unlock()
	}
}

// Insert adds the record to every view of its entity type at the position the
// view order dictates. Views that already hold the identity are left alone,
// and so are partial windows where the record would land past the last
// cached row, since that row belongs to a page not fetched yet.
func (p *Propagator) Insert(rec types.Record) {
	entity := rec.Entity()
	if entity == "" {
		p.logger.Debug("insert ignored: unknown kind", "kind", rec.Kind, "id", rec.ID)
		return
	}
	ref := rec.Ref()

	p.mu.Lock()
	if deleted, ok := p.tombstones[ref]; ok && rec.Version != 0 {
		if rec.Version <= deleted {
			p.mu.Unlock()
			staleMutationsTotal.WithLabelValues(opInsert).Inc()
			p.logger.Debug("insert ignored: record was removed at a newer version",
				"kind", rec.Kind, "id", rec.ID, "version", rec.Version, "removed_at", deleted)
			return
		}
		delete(p.tombstones, ref)
	}

	touched := 0
	p.registry.ForEachMatching(entity, func(c *views.ViewCache) {
		if c.IndexOf(ref) >= 0 {
			return
		}
		if p.filterMatching && !c.Key().Filters.Matches(rec) {
			return
		}
		if place(c, rec.Clone()) {
			touched++
		}
	})
	p.mu.Unlock()

	propagationsTotal.WithLabelValues(opInsert).Inc()
	rowsTouchedTotal.WithLabelValues(opInsert).Add(float64(touched))
	p.logger.Debug("propagated insert", "kind", rec.Kind, "id", rec.ID, "views", touched)

	for _, inv := range p.invalidators {
		inv.InvalidateSummaries(entity)
	}
	if touched > 0 {
		p.notifyInsert(InsertEvent{Record: rec, GroupKeys: groupKeys(rec), Views: touched})
	}
}

// Update merges patch into every cached snapshot of the record. A row whose
// sort value or group key changes is removed and re-inserted at the position
// a fresh insert would take; otherwise it is replaced where it stands. A
// moved row that would land past the end of a partial window is dropped.
func (p *Propagator) Update(kind types.Kind, id int64, patch types.Patch) {
	entity := kind.Entity()
	if entity == "" {
		return
	}
	ref := types.RecordRef{Kind: kind, ID: id}

	p.mu.Lock()
	moved, replaced, dropped, stale := 0, 0, 0, 0
	p.registry.ForEachMatching(entity, func(c *views.ViewCache) {
		i := c.IndexOf(ref)
		if i < 0 {
			return
		}
		old := c.At(i)
		if patch.Version != 0 && old.Version > patch.Version {
			stale++
			return
		}
		merged := patch.Apply(old)

		if p.filterMatching && !c.Key().Filters.Matches(merged) {
			c.RemoveAt(i)
			regroup(c)
			dropped++
			return
		}

		if repositions(c, patch, old, merged) {
			// the old index is no longer trustworthy once the row's rank changed
			c.RemoveAt(i)
			regroup(c)
			if !place(c, merged) {
				dropped++
				return
			}
			moved++
			return
		}
		c.ReplaceAt(i, merged)
		replaced++
	})
	p.mu.Unlock()

	propagationsTotal.WithLabelValues(opUpdate).Inc()
	rowsTouchedTotal.WithLabelValues(opUpdate).Add(float64(moved + replaced + dropped))
	if stale > 0 {
		staleMutationsTotal.WithLabelValues(opUpdate).Inc()
	}
	p.logger.Debug("propagated update", "kind", kind, "id", id,
		"moved", moved, "replaced", replaced, "dropped", dropped, "stale", stale)

	for _, inv := range p.invalidators {
		inv.InvalidateDetail(ref)
		inv.InvalidateSummaries(entity)
	}
}

// Remove deletes the record from every view
func (p *Propagator) Remove(kind types.Kind, id int64) {
	p.RemoveVersion(kind, id, 0)
}

// RemoveVersion deletes the record from every view and, when version is
// non-zero, remembers it so a late insert of an older snapshot is ignored
func (p *Propagator) RemoveVersion(kind types.Kind, id int64, version int64) {
	entity := kind.Entity()
	if entity == "" {
		return
	}
	ref := types.RecordRef{Kind: kind, ID: id}

	p.mu.Lock()
	if version != 0 && version > p.tombstones[ref] {
		p.tombstones[ref] = version
	}
	removed := 0
	p.registry.ForEachMatching(entity, func(c *views.ViewCache) {
		if i := c.IndexOf(ref); i >= 0 {
			c.RemoveAt(i)
			regroup(c)
			removed++
		}
	})
	p.mu.Unlock()

	propagationsTotal.WithLabelValues(opRemove).Inc()
	rowsTouchedTotal.WithLabelValues(opRemove).Add(float64(removed))
	p.logger.Debug("propagated remove", "kind", kind, "id", id, "views", removed)

	for _, inv := range p.invalidators {
		inv.InvalidateDetail(ref)
		inv.InvalidateSummaries(entity)
	}
}

// place splices rec into c where the view order puts it. It reports false,
// leaving c untouched, when c is partial and rec would land past its last row.
func place(c *views.ViewCache, rec types.Record) bool {
	idx := grouping.InsertionIndex(c.View(), rec, c.Sort(), c.Key().Grouping)
	if c.Partial() && idx == c.Len() {
		return false
	}
	c.InsertAt(idx, rec)
	regroup(c)
	return true
}

// regroup restores cluster ranking after a grouped view gained or lost a row,
// since either can change which row leads a cluster
func regroup(c *views.ViewCache) {
	mode := c.Key().Grouping
	if mode.Normalize() == types.GroupNone {
		return
	}
	spec := c.Sort()
	c.Reorder(func(rows []types.Record) {
		grouping.RankClusters(rows, spec, mode)
	})
}

func repositions(c *views.ViewCache, patch types.Patch, old, merged types.Record) bool {
	field := c.Sort().Normalize().Field
	if patch.Touches(field) && !order.Equal(order.ValueOf(old, field), order.ValueOf(merged, field)) {
		return true
	}
	mode := c.Key().Grouping
	if mode.Normalize() == types.GroupNone {
		return false
	}
	before, _ := grouping.DeriveKey(old, mode)
	after, _ := grouping.DeriveKey(merged, mode)
	return before != after
}

func (p *Propagator) notifyInsert(ev InsertEvent) {
	p.listenersMu.Lock()
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]InsertListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, p.listeners[id])
	}
	p.listenersMu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

func groupKeys(rec types.Record) map[types.GroupingMode]string {
	keys := make(map[types.GroupingMode]string, len(types.GroupingModes))
	for _, mode := range types.GroupingModes {
		key, _ := grouping.DeriveKey(rec, mode)
		keys[mode] = key
	}
	return keys
}
