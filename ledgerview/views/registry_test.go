package views_test

import (
	"sync"
	"testing"

	"github.com/arthur-debert/ledgerview/ledgerview/views"
	"github.com/arthur-debert/ledgerview/types"
)

func invoice(id int64) types.Record {
	return types.Record{Kind: types.KindInvoice, ID: id}
}

func TestRegistryGetOrCreate(t *testing.T) {
	reg := views.NewRegistry()
	byDate := types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{}, types.GroupNone)

	first := reg.GetOrCreate(byDate)
	if first == nil {
		t.Fatal("expected a cache")
	}
	if first.Len() != 0 || first.Loaded() {
		t.Error("new cache must be empty and unloaded")
	}

	again := reg.GetOrCreate(types.ViewKey{Entity: types.EntityDocuments})
	if again != first {
		t.Error("equal keys must share one cache")
	}

	byTotal := types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: types.SortByTotal}, types.GroupNone)
	if reg.GetOrCreate(byTotal) == first {
		t.Error("different sort specs must not share a cache")
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 views, got %d", reg.Len())
	}

	if _, ok := reg.Get(types.NewViewKey(types.EntityBriefings, types.Filters{}, types.SortSpec{}, types.GroupNone)); ok {
		t.Error("Get must not create views")
	}
}

func TestRegistryForEachMatching(t *testing.T) {
	reg := views.NewRegistry()
	reg.GetOrCreate(types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{}, types.GroupNone))
	reg.GetOrCreate(types.NewViewKey(types.EntityDocuments, types.Filters{Tag: "rent"}, types.SortSpec{}, types.GroupByMonth))
	reg.GetOrCreate(types.NewViewKey(types.EntityBriefings, types.Filters{}, types.SortSpec{}, types.GroupNone))

	var visited []types.EntityType
	reg.ForEachMatching(types.EntityDocuments, func(c *views.ViewCache) {
		visited = append(visited, c.Entity())
	})
	if len(visited) != 2 {
		t.Fatalf("expected 2 document views, visited %d", len(visited))
	}
	for _, e := range visited {
		if e != types.EntityDocuments {
			t.Errorf("visited a %s view", e)
		}
	}
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	reg := views.NewRegistry()
	key := types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{}, types.GroupNone)

	var wg sync.WaitGroup
	results := make(chan *views.ViewCache, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- reg.GetOrCreate(key)
		}()
	}
	wg.Wait()
	close(results)

	var first *views.ViewCache
	for c := range results {
		if first == nil {
			first = c
		}
		if c != first {
			t.Fatal("concurrent GetOrCreate returned different caches")
		}
	}
}

func TestViewCacheAppendPage(t *testing.T) {
	reg := views.NewRegistry()
	cache := reg.GetOrCreate(types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: types.SortByID}, types.GroupNone))

	reg.Write(cache, func(c *views.ViewCache) {
		n := c.AppendPage([]types.Record{invoice(1), invoice(2)}, "2", false)
		if n != 2 {
			t.Errorf("expected 2 appended, got %d", n)
		}
		n = c.AppendPage([]types.Record{invoice(2), invoice(3)}, "", true)
		if n != 1 {
			t.Errorf("an already cached row must not count as appended, got %d", n)
		}
	})

	if !cache.Exhausted() || !cache.Loaded() {
		t.Error("expected cache to be loaded and exhausted")
	}
	rows := cache.Rows()
	if len(rows) != 3 || rows[2].ID != 3 {
		t.Errorf("unexpected rows: %+v", rows)
	}

	rows[0].ID = 99
	if cache.At(0).ID != 1 {
		t.Error("Rows must return a copy")
	}

	reg.Write(cache, func(c *views.ViewCache) { c.Reset() })
	if cache.Len() != 0 || cache.Exhausted() || cache.Cursor() != "" {
		t.Error("Reset must clear rows and paging state")
	}
}

func TestViewCacheSplicing(t *testing.T) {
	reg := views.NewRegistry()
	cache := reg.GetOrCreate(types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: types.SortByID}, types.GroupNone))

	reg.Write(cache, func(c *views.ViewCache) {
		c.AppendPage([]types.Record{invoice(1), invoice(3)}, "", true)
		c.InsertAt(1, invoice(2))
		c.ReplaceAt(0, types.Record{Kind: types.KindInvoice, ID: 1, Tag: "x"})
		c.RemoveAt(2)
	})

	if cache.Len() != 2 || cache.At(1).ID != 2 || cache.At(0).Tag != "x" {
		t.Errorf("unexpected rows after splicing: %+v", cache.Rows())
	}
	if cache.IndexOf(types.RecordRef{Kind: types.KindReceipt, ID: 1}) != -1 {
		t.Error("identity must include the kind")
	}
}

func TestAppendPageMovesRedeliveredRows(t *testing.T) {
	priced := func(id int64, total float64) types.Record {
		return types.Record{Kind: types.KindInvoice, ID: id, Total: types.Float(total)}
	}
	reg := views.NewRegistry()
	cache := reg.GetOrCreate(types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: types.SortByTotal}, types.GroupNone))

	reg.Write(cache, func(c *views.ViewCache) {
		c.AppendPage([]types.Record{priced(5, 10), priced(9, 20)}, "o:2", false)
		// a record known locally before its page arrived
		c.InsertAt(c.Len(), priced(11, 50))
		c.AppendPage([]types.Record{priced(2, 30), priced(7, 40), priced(11, 50)}, "", true)
	})

	var ids []int64
	for _, r := range cache.Rows() {
		ids = append(ids, r.ID)
	}
	want := []int64{5, 9, 2, 7, 11}
	if len(ids) != len(want) {
		t.Fatalf("rows = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("rows = %v, want %v", ids, want)
		}
	}
}

func TestViewCacheDrift(t *testing.T) {
	reg := views.NewRegistry()
	cache := reg.GetOrCreate(types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: types.SortByID}, types.GroupNone))

	reg.Write(cache, func(c *views.ViewCache) {
		c.AppendPage([]types.Record{invoice(1), invoice(3), invoice(5)}, "o:3", false)
		c.InsertAt(1, invoice(2))
		c.RemoveAt(0)
		c.RemoveAt(0)
	})
	if cache.Drift() != -1 || !cache.Partial() {
		t.Errorf("Drift() = %d, Partial() = %v; want -1, true", cache.Drift(), cache.Partial())
	}

	reg.Write(cache, func(c *views.ViewCache) {
		c.AppendPage([]types.Record{invoice(7)}, "", true)
	})
	if cache.Drift() != 0 || cache.Partial() {
		t.Error("a fetched page must reset the drift")
	}
}
