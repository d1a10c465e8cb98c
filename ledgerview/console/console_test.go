package console_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/ledgerview/ledgerview/console"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/ledgerview/testutil"
	"github.com/arthur-debert/ledgerview/types"
)

// countingService counts the reads that the console is expected to cache
type countingService struct {
	remote.Service
	gets   atomic.Int32
	totals atomic.Int32
}

func (s *countingService) Get(ctx context.Context, kind types.Kind, id int64) (types.Record, error) {
	s.gets.Add(1)
	return s.Service.Get(ctx, kind, id)
}

func (s *countingService) FetchGroupTotals(ctx context.Context, entity types.EntityType, filters types.Filters, mode types.GroupingMode) ([]types.GroupTotals, error) {
	s.totals.Add(1)
	return s.Service.FetchGroupTotals(ctx, entity, filters, mode)
}

func documentsView(field types.SortField, desc bool, mode types.GroupingMode) types.ViewKey {
	return types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: field, Descending: desc}, mode)
}

func subscribe(t *testing.T, c *console.Console, key types.ViewKey) *console.Subscription {
	t.Helper()
	sub, err := c.Subscribe(key)
	if err != nil {
		t.Fatalf("Subscribe(%s) error: %v", key, err)
	}
	t.Cleanup(sub.Close)
	if err := sub.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll(%s) error: %v", key, err)
	}
	return sub
}

func TestSubscriptionPaging(t *testing.T) {
	store, _ := testutil.LoadLedger(t)
	c := console.New(store, console.WithPageSize(2))
	ctx := context.Background()

	sub, err := c.Subscribe(documentsView(types.SortByDate, true, types.GroupNone))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	n, err := sub.LoadNextPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || sub.Exhausted() {
		t.Fatalf("first page appended %d rows, exhausted=%v", n, sub.Exhausted())
	}
	if err := sub.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}
	testutil.AssertNumbersInOrder(t, sub.Rows(), "R-2001", "INV-1001", "INV-1004", "CN-3001", "INV-1002", "INV-1003")

	n, err = sub.LoadNextPage(ctx)
	if err != nil || n != 0 {
		t.Errorf("LoadNextPage() on an exhausted view = %d, %v", n, err)
	}
}

func TestSubscribeSharesCaches(t *testing.T) {
	store, _ := testutil.LoadLedger(t)
	c := console.New(store)

	a := subscribe(t, c, documentsView(types.SortByTotal, false, types.GroupNone))
	b := subscribe(t, c, documentsView(types.SortByTotal, false, types.GroupNone))
	subscribe(t, c, documentsView(types.SortByNumber, false, types.GroupNone))

	if c.Registry().Len() != 2 {
		t.Errorf("expected 2 view caches, got %d", c.Registry().Len())
	}
	if diff := cmp.Diff(testutil.Numbers(a.Rows()), testutil.Numbers(b.Rows())); diff != "" {
		t.Errorf("subscriptions with the same key disagree (-a +b):\n%s", diff)
	}

	if _, err := c.Subscribe(types.ViewKey{Entity: "tasks"}); err == nil {
		t.Error("expected an error for an unknown entity")
	}
}

func TestCreatePropagatesToOpenViews(t *testing.T) {
	store, data := testutil.LoadLedger(t)
	c := console.New(store)
	ctx := context.Background()

	byDate := subscribe(t, c, documentsView(types.SortByDate, true, types.GroupNone))
	byTotal := subscribe(t, c, documentsView(types.SortByTotal, true, types.GroupNone))
	briefings := subscribe(t, c, types.NewViewKey(types.EntityBriefings, types.Filters{}, types.SortSpec{}, types.GroupNone))

	created, err := c.Create(ctx, types.Record{
		Kind: types.KindInvoice, Number: "INV-1005", Counterparty: "Acme",
		Total: types.Float(500), Date: types.Day(2024, 2, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertNumbersInOrder(t, byDate.Rows(), "R-2001", "INV-1001", "INV-1004", "CN-3001", "INV-1005", "INV-1002", "INV-1003")
	testutil.AssertNumbersInOrder(t, byTotal.Rows(), "INV-1002", "INV-1005", "INV-1001", "R-2001", "INV-1003", "CN-3001", "INV-1004")
	testutil.AssertNotContains(t, briefings.Rows(), created.Ref())
	testutil.AssertContains(t, briefings.Rows(), data.Kickoff.Ref())

	// a refetch agrees with the locally maintained order
	before := testutil.Numbers(byDate.Rows())
	if err := byDate.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := byDate.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, testutil.Numbers(byDate.Rows())); diff != "" {
		t.Errorf("local order differs from server order (-local +server):\n%s", diff)
	}
}

func TestCreateFailureLeavesViewsUntouched(t *testing.T) {
	store, _ := testutil.LoadLedger(t)
	c := console.New(store)

	sub := subscribe(t, c, documentsView(types.SortByDate, true, types.GroupNone))
	_, err := c.Create(context.Background(), types.Record{Kind: types.KindInvoice, Total: types.Float(-1)})
	if !errors.Is(err, remote.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	testutil.AssertRecordCount(t, sub.Rows(), 6)
}

func TestEditRepositionsAndRefreshesDetail(t *testing.T) {
	store, data := testutil.LoadLedger(t)
	svc := &countingService{Service: store}
	c := console.New(svc)
	ctx := context.Background()

	sub := subscribe(t, c, documentsView(types.SortByDate, true, types.GroupNone))

	ref := data.RentJanuary.Ref()
	if _, err := c.Detail(ctx, ref.Kind, ref.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Detail(ctx, ref.Kind, ref.ID); err != nil {
		t.Fatal(err)
	}
	if got := svc.gets.Load(); got != 1 {
		t.Errorf("detail fetched %d times, want 1", got)
	}

	updated, err := c.Edit(ctx, ref.Kind, ref.ID, types.Patch{Date: types.Day(2024, 3, 2)})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertNumbersInOrder(t, sub.Rows(), "R-2001", "INV-1002", "INV-1001", "INV-1004", "CN-3001", "INV-1003")
	testutil.AssertSorted(t, sub.Rows(), sub.Key().Sort)

	detail, err := c.Detail(ctx, ref.Kind, ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	if svc.gets.Load() != 2 {
		t.Error("edit did not invalidate the detail cache")
	}
	if !detail.Date.Equal(*types.Day(2024, 3, 2)) || detail.Version != updated.Version {
		t.Errorf("stale detail after edit: %+v", detail)
	}

	for _, r := range sub.Rows() {
		if r.Ref() == ref && r.Version != updated.Version {
			t.Errorf("cached row version %d, server version %d", r.Version, updated.Version)
		}
	}
}

func TestEditNotFound(t *testing.T) {
	store, _ := testutil.LoadLedger(t)
	c := console.New(store)
	_, err := c.Edit(context.Background(), types.KindInvoice, 404, types.Patch{Tag: types.String("x")})
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	store, data := testutil.LoadLedger(t)
	c := console.New(store)
	ctx := context.Background()

	byDate := subscribe(t, c, documentsView(types.SortByDate, true, types.GroupNone))
	byTag := subscribe(t, c, documentsView(types.SortByNumber, false, types.GroupByTag))

	ref := data.HostingMarch.Ref()
	if err := c.Delete(ctx, ref.Kind, ref.ID); err != nil {
		t.Fatal(err)
	}
	testutil.AssertNotContains(t, byDate.Rows(), ref)
	testutil.AssertNotContains(t, byTag.Rows(), ref)
	testutil.AssertRecordCount(t, byDate.Rows(), 5)

	if err := c.Delete(ctx, ref.Kind, ref.ID); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestTotalsCacheAndOverlay(t *testing.T) {
	store, _ := testutil.LoadLedger(t)
	svc := &countingService{Service: store}
	c := console.New(svc)
	ctx := context.Background()

	filters := types.Filters{Counterparty: "globex"}
	totals, err := c.Totals(ctx, types.EntityDocuments, filters, types.GroupByTag)
	if err != nil {
		t.Fatal(err)
	}
	want := []types.GroupTotals{
		{GroupKey: "consulting", Metrics: map[string]float64{types.MetricCount: 1, types.MetricTotal: 0}},
		{GroupKey: "rent", Metrics: map[string]float64{types.MetricCount: 1, types.MetricTotal: 900}},
	}
	if diff := cmp.Diff(want, totals); diff != "" {
		t.Errorf("Totals() mismatch (-want +got):\n%s", diff)
	}
	if _, err := c.Totals(ctx, types.EntityDocuments, filters, types.GroupByTag); err != nil {
		t.Fatal(err)
	}
	if svc.totals.Load() != 1 {
		t.Errorf("totals fetched %d times, want 1", svc.totals.Load())
	}

	t.Run("optimistic list replaces the fetched one", func(t *testing.T) {
		optimistic := []types.GroupTotals{{GroupKey: "rent", Metrics: map[string]float64{types.MetricTotal: 1}}}
		c.SetOptimisticTotals(types.EntityDocuments, filters, types.GroupByTag, optimistic)
		got, err := c.Totals(ctx, types.EntityDocuments, filters, types.GroupByTag)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(optimistic, got); diff != "" {
			t.Errorf("overlay mismatch (-want +got):\n%s", diff)
		}
		c.SetOptimisticTotals(types.EntityDocuments, filters, types.GroupByTag, nil)
	})

	t.Run("mutations invalidate the summaries", func(t *testing.T) {
		if _, err := c.Create(ctx, types.Record{Kind: types.KindInvoice, Number: "INV-2000", Counterparty: "Globex", Tag: "rent", Total: types.Float(100)}); err != nil {
			t.Fatal(err)
		}
		got, err := c.Totals(ctx, types.EntityDocuments, filters, types.GroupByTag)
		if err != nil {
			t.Fatal(err)
		}
		rent, ok := findTotals(got, "rent")
		if !ok || rent[types.MetricTotal] != 1000 || rent[types.MetricCount] != 2 {
			t.Errorf("rent totals after create = %v", rent)
		}
		if svc.totals.Load() != 2 {
			t.Errorf("totals fetched %d times, want 2", svc.totals.Load())
		}
	})
}

func findTotals(list []types.GroupTotals, key string) (map[string]float64, bool) {
	for _, g := range list {
		if g.GroupKey == key {
			return g.Metrics, true
		}
	}
	return nil, false
}

func TestInsertExpandsCollapsedGroup(t *testing.T) {
	store, _ := testutil.LoadLedger(t)
	c := console.New(store)
	ctx := context.Background()

	sub := subscribe(t, c, documentsView(types.SortByDate, true, types.GroupByMonth))
	testutil.AssertGroupKeys(t, sub.Groups(), "2024-03", "2024-02", "2024-01", "no-date")

	sub.Collapse().Collapse("2024-02")
	sub.Collapse().Collapse("2024-01")

	if _, err := c.Create(ctx, types.Record{Kind: types.KindReceipt, Number: "R-2002", Total: types.Float(5), Date: types.Day(2024, 2, 20)}); err != nil {
		t.Fatal(err)
	}
	if sub.Collapse().IsCollapsed("2024-02") {
		t.Error("group receiving the new record should be expanded")
	}
	if !sub.Collapse().IsCollapsed("2024-01") {
		t.Error("unrelated group should stay collapsed")
	}

	groups := sub.Groups()
	testutil.AssertGroupKeys(t, groups, "2024-03", "2024-02", "2024-01", "no-date")
	testutil.AssertNumbersInOrder(t, groups[1].Rows, "INV-1004", "R-2002", "CN-3001")

	t.Run("closed subscriptions stop reacting", func(t *testing.T) {
		sub.Collapse().Collapse("2024-01")
		sub.Close()
		if _, err := c.Create(ctx, types.Record{Kind: types.KindReceipt, Number: "R-2003", Date: types.Day(2024, 1, 9)}); err != nil {
			t.Fatal(err)
		}
		if !sub.Collapse().IsCollapsed("2024-01") {
			t.Error("closed subscription should not expand groups")
		}
	})
}

func TestPagingAfterLocalMutations(t *testing.T) {
	store, data := testutil.LoadLedger(t)
	c := console.New(store, console.WithPageSize(2))
	ctx := context.Background()

	sub, err := c.Subscribe(documentsView(types.SortByDate, true, types.GroupNone))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	if _, err := sub.LoadNextPage(ctx); err != nil {
		t.Fatal(err)
	}
	testutil.AssertNumbersInOrder(t, sub.Rows(), "R-2001", "INV-1001")

	if _, err := c.Create(ctx, types.Record{Kind: types.KindReceipt, Number: "R-2010", Total: types.Float(5), Date: types.Day(2024, 3, 3)}); err != nil {
		t.Fatal(err)
	}
	// lands after the loaded window, so it waits for its page
	if _, err := c.Create(ctx, types.Record{Kind: types.KindReceipt, Number: "R-2011", Total: types.Float(5), Date: types.Day(2024, 2, 1)}); err != nil {
		t.Fatal(err)
	}
	for _, ref := range []types.RecordRef{data.HostingReceipt.Ref(), data.HostingMarch.Ref()} {
		if err := c.Delete(ctx, ref.Kind, ref.ID); err != nil {
			t.Fatal(err)
		}
	}
	testutil.AssertNumbersInOrder(t, sub.Rows(), "R-2010")

	if err := sub.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}
	fresh := subscribe(t, console.New(store), documentsView(types.SortByDate, true, types.GroupNone))
	if diff := cmp.Diff(testutil.Numbers(fresh.Rows()), testutil.Numbers(sub.Rows())); diff != "" {
		t.Errorf("paged view diverges from a fresh fetch (-fresh +paged):\n%s", diff)
	}
	testutil.AssertNumbersInOrder(t, sub.Rows(), "R-2010", "INV-1004", "CN-3001", "R-2011", "INV-1002", "INV-1003")
}

func TestGroupedViewAfterLocalMutations(t *testing.T) {
	store, data := testutil.LoadLedger(t)
	c := console.New(store)
	ctx := context.Background()

	key := documentsView(types.SortByTotal, true, types.GroupByCounterparty)
	sub := subscribe(t, c, key)

	if _, err := c.Create(ctx, types.Record{Kind: types.KindInvoice, Number: "INV-1005", Counterparty: "Acme", Total: types.Float(1000), Date: types.Day(2024, 3, 5)}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Edit(ctx, data.RentJanuary.Kind, data.RentJanuary.ID, types.Patch{Counterparty: types.String("Initech")}); err != nil {
		t.Fatal(err)
	}

	fresh := subscribe(t, console.New(store), key)
	if diff := cmp.Diff(testutil.Numbers(fresh.Rows()), testutil.Numbers(sub.Rows())); diff != "" {
		t.Errorf("grouped view diverges from a fresh fetch (-fresh +cached):\n%s", diff)
	}
}

func TestEditCarriesServerSnapshot(t *testing.T) {
	store, data := testutil.LoadLedger(t)
	c := console.New(store)
	ctx := context.Background()

	sub := subscribe(t, c, documentsView(types.SortByDate, true, types.GroupNone))
	ref := data.RentJanuary.Ref()
	if _, err := c.Detail(ctx, ref.Kind, ref.ID); err != nil {
		t.Fatal(err)
	}

	// another session retags the record behind this console's back
	if _, err := store.Update(ctx, ref.Kind, ref.ID, types.Patch{Tag: types.String("office")}); err != nil {
		t.Fatal(err)
	}
	updated, err := c.Edit(ctx, ref.Kind, ref.ID, types.Patch{Total: types.Float(950)})
	if err != nil {
		t.Fatal(err)
	}

	for _, r := range sub.Rows() {
		if r.Ref() != ref {
			continue
		}
		if r.Tag != "office" || *r.Total != 950 || r.Version != updated.Version {
			t.Errorf("cached row %+v does not match the server snapshot %+v", r, updated)
		}
	}
}
