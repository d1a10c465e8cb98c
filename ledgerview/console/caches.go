package console

import (
	"sync"

	"github.com/arthur-debert/ledgerview/types"
)

// detailCache holds single-record snapshots fetched for detail screens
type detailCache struct {
	mu      sync.RWMutex
	records map[types.RecordRef]types.Record
}

func newDetailCache() *detailCache {
	return &detailCache{records: make(map[types.RecordRef]types.Record)}
}

func (d *detailCache) get(ref types.RecordRef) (types.Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[ref]
	return r.Clone(), ok
}

func (d *detailCache) put(r types.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[r.Ref()] = r.Clone()
}

func (d *detailCache) InvalidateSummaries(types.EntityType) {}

func (d *detailCache) InvalidateDetail(ref types.RecordRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records, ref)
}

// totalsKey identifies one aggregate query
type totalsKey struct {
	entity types.EntityType
	id     string
}

func newTotalsKey(entity types.EntityType, filters types.Filters, mode types.GroupingMode) totalsKey {
	// sort does not affect totals; the view key gives a canonical filter encoding
	return totalsKey{entity: entity, id: types.NewViewKey(entity, filters, types.SortSpec{}, mode).ID()}
}

// totalsCache holds server-computed group totals and any optimistic
// replacement lists the caller has set
type totalsCache struct {
	mu         sync.RWMutex
	fetched    map[totalsKey][]types.GroupTotals
	optimistic map[totalsKey][]types.GroupTotals
}

func newTotalsCache() *totalsCache {
	return &totalsCache{
		fetched:    make(map[totalsKey][]types.GroupTotals),
		optimistic: make(map[totalsKey][]types.GroupTotals),
	}
}

func (c *totalsCache) get(k totalsKey) (fetched, optimistic []types.GroupTotals, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fetched, ok = c.fetched[k]
	return fetched, c.optimistic[k], ok
}

func (c *totalsCache) put(k totalsKey, list []types.GroupTotals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched[k] = list
}

func (c *totalsCache) setOptimistic(k totalsKey, list []types.GroupTotals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list == nil {
		delete(c.optimistic, k)
		return
	}
	c.optimistic[k] = list
}

func (c *totalsCache) InvalidateSummaries(entity types.EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.fetched {
		if k.entity == entity {
			delete(c.fetched, k)
		}
	}
}

func (c *totalsCache) InvalidateDetail(types.RecordRef) {}
