package views

import (
	"sort"

	"github.com/arthur-debert/ledgerview/types"
)

// Registry maps view keys to view caches. Caches are created lazily on first
// subscription and retained for the registry's lifetime; there is no eviction.
//
// The registry is constructed explicitly and passed to whoever owns the UI
// subscriptions, so independent registries never share state.
type Registry struct {
	lm     *LockManager
	caches map[string]*ViewCache
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		lm:     NewLockManager(),
		caches: make(map[string]*ViewCache),
	}
}

// GetOrCreate returns the cache for key, creating an empty one if needed.
// Creation is idempotent: equal keys always yield the same cache.
func (r *Registry) GetOrCreate(key types.ViewKey) *ViewCache {
	key = key.Normalize()
	id := key.ID()

	var cache *ViewCache
	r.lm.Execute(ReadOperation, func() {
		cache = r.caches[id]
	})
	if cache != nil {
		return cache
	}

	r.lm.Execute(WriteOperation, func() {
		if existing, ok := r.caches[id]; ok {
			cache = existing
			return
		}
		cache = newViewCache(key)
		r.caches[id] = cache
	})
	return cache
}

// Get returns the cache for key if one exists
func (r *Registry) Get(key types.ViewKey) (*ViewCache, bool) {
	var cache *ViewCache
	r.lm.Execute(ReadOperation, func() {
		cache = r.caches[key.ID()]
	})
	return cache, cache != nil
}

// Len returns the number of registered views
func (r *Registry) Len() int {
	var n int
	r.lm.Execute(ReadOperation, func() {
		n = len(r.caches)
	})
	return n
}

// Keys returns the registered view keys ordered by ID
func (r *Registry) Keys() []types.ViewKey {
	var keys []types.ViewKey
	r.lm.Execute(ReadOperation, func() {
		for _, id := range r.sortedIDs() {
			keys = append(keys, r.caches[id].key)
		}
	})
	return keys
}

// ForEachMatching invokes fn for every cache whose key encodes entity, in key
// order, while holding the registry write lock. fn may mutate the cache it is
// given but must not call back into the registry.
func (r *Registry) ForEachMatching(entity types.EntityType, fn func(*ViewCache)) {
	r.lm.Execute(WriteOperation, func() {
		for _, id := range r.sortedIDs() {
			cache := r.caches[id]
			if cache.key.Entity == entity {
				fn(cache)
			}
		}
	})
}

// Read runs fn with shared access to a single cache
func (r *Registry) Read(cache *ViewCache, fn func(*ViewCache)) {
	r.lm.Execute(ReadOperation, func() {
		fn(cache)
	})
}

// Write runs fn with exclusive access to a single cache, for page appends
// and resets
func (r *Registry) Write(cache *ViewCache, fn func(*ViewCache)) {
	r.lm.Execute(WriteOperation, func() {
		fn(cache)
	})
}

// sortedIDs must be called with the lock held
func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.caches))
	for id := range r.caches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
