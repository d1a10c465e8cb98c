// Package remotetest holds a behavioural suite that every remote.Service
// implementation must pass.
package remotetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/ledgerview/order"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/types"
)

// Factory returns a fresh, empty service. The suite closes it.
type Factory func(t *testing.T) remote.Service

// Seed is the record set every paging test runs against
var Seed = []types.Record{
	{Kind: types.KindInvoice, Number: "INV-1", Counterparty: "Acme", Tag: "hosting", Total: types.Float(100), Date: types.Day(2024, 3, 1)},
	{Kind: types.KindInvoice, Number: "INV-2", Counterparty: "Globex", Tag: "rent", Total: types.Float(50), Date: types.Day(2024, 1, 1)},
	{Kind: types.KindReceipt, Number: "R-1", Counterparty: "acme", Tag: "hosting", Total: types.Float(75), Date: types.Day(2024, 2, 15)},
	{Kind: types.KindInvoice, Number: "INV-3", Counterparty: "Initech", Tag: "rent", Total: types.Float(20)},
	{Kind: types.KindCreditNote, Number: "CN-1", Counterparty: "Acme", Total: types.Float(-10), Date: types.Day(2024, 3, 20)},
	{Kind: types.KindBriefing, Notes: "kickoff", Date: types.Day(2024, 3, 2)},
}

// Run executes the suite against services built by newService
func Run(t *testing.T, newService Factory) {
	t.Helper()

	open := func(t *testing.T) (remote.Service, []types.Record) {
		t.Helper()
		svc := newService(t)
		t.Cleanup(func() { _ = svc.Close() })
		created := make([]types.Record, 0, len(Seed))
		for _, r := range Seed {
			c, err := svc.Create(context.Background(), r)
			if err != nil {
				t.Fatalf("Create(%s %s) error: %v", r.Kind, r.Number, err)
			}
			created = append(created, c)
		}
		return svc, created
	}

	t.Run("create assigns per-kind ids and increasing versions", func(t *testing.T) {
		_, created := open(t)
		if created[0].ID != 1 || created[1].ID != 2 || created[2].ID != 1 {
			t.Errorf("unexpected ids: %d %d %d", created[0].ID, created[1].ID, created[2].ID)
		}
		for i := 1; i < len(created); i++ {
			if created[i].Version <= created[i-1].Version {
				t.Errorf("version %d not after %d", created[i].Version, created[i-1].Version)
			}
		}
	})

	t.Run("pages follow the local comparator", func(t *testing.T) {
		svc, _ := open(t)
		for _, field := range types.SortFields {
			for _, desc := range []bool{false, true} {
				spec := types.SortSpec{Field: field, Descending: desc}
				rows := fetchAll(t, svc, types.NewViewKey(types.EntityDocuments, types.Filters{}, spec, types.GroupNone), 2)
				if len(rows) != 5 {
					t.Fatalf("%s: got %d rows, want 5", spec, len(rows))
				}
				if !order.IsSorted(rows, spec) {
					t.Errorf("%s: rows out of order", spec)
				}
			}
		}
	})

	t.Run("grouped pages keep groups contiguous", func(t *testing.T) {
		svc, _ := open(t)
		for _, mode := range []types.GroupingMode{types.GroupByMonth, types.GroupByCounterparty, types.GroupByTag} {
			key := types.NewViewKey(types.EntityDocuments, types.Filters{}, types.SortSpec{Field: types.SortByTotal}, mode)
			rows := fetchAll(t, svc, key, 2)
			seen := map[string]bool{}
			for _, k := range grouping.Keys(grouping.Group(rows, mode)) {
				if seen[k] {
					t.Errorf("%s: group %q split across the result", mode, k)
				}
				seen[k] = true
			}
		}
	})

	t.Run("filters", func(t *testing.T) {
		svc, _ := open(t)
		key := types.NewViewKey(types.EntityDocuments, types.Filters{
			Counterparty: "ACME",
			From:         types.Day(2024, 2, 1),
			To:           types.Day(2024, 3, 31),
		}, types.SortSpec{Field: types.SortByNumber}, types.GroupNone)
		var numbers []string
		for _, r := range fetchAll(t, svc, key, 10) {
			numbers = append(numbers, r.Number)
		}
		if diff := cmp.Diff([]string{"CN-1", "INV-1", "R-1"}, numbers); diff != "" {
			t.Errorf("filtered rows mismatch (-want +got):\n%s", diff)
		}

		briefings := fetchAll(t, svc, types.NewViewKey(types.EntityBriefings, types.Filters{}, types.SortSpec{}, types.GroupNone), 10)
		if len(briefings) != 1 || briefings[0].Kind != types.KindBriefing {
			t.Errorf("briefing view returned %v", briefings)
		}
	})

	t.Run("update merges and bumps the version", func(t *testing.T) {
		svc, created := open(t)
		ctx := context.Background()
		target := created[1]
		updated, err := svc.Update(ctx, target.Kind, target.ID, types.Patch{Total: types.Float(500), ClearDate: true})
		if err != nil {
			t.Fatal(err)
		}
		if *updated.Total != 500 || updated.Date != nil || updated.Number != target.Number {
			t.Errorf("unexpected merge: %+v", updated)
		}
		if updated.Version <= created[len(created)-1].Version {
			t.Errorf("update version %d is not the newest", updated.Version)
		}
		got, err := svc.Get(ctx, target.Kind, target.ID)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(updated, got); diff != "" {
			t.Errorf("Get() mismatch (-want +got):\n%s", diff)
		}
		if _, err := svc.Update(ctx, types.KindInvoice, 999, types.Patch{Tag: types.String("x")}); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete returns a newer version", func(t *testing.T) {
		svc, created := open(t)
		ctx := context.Background()
		target := created[0]
		version, err := svc.Delete(ctx, target.Kind, target.ID)
		if err != nil {
			t.Fatal(err)
		}
		if version <= created[len(created)-1].Version {
			t.Errorf("deletion version %d is not the newest", version)
		}
		if _, err := svc.Get(ctx, target.Kind, target.ID); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := svc.Delete(ctx, target.Kind, target.ID); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("group totals", func(t *testing.T) {
		svc, _ := open(t)
		got, err := svc.FetchGroupTotals(context.Background(), types.EntityDocuments, types.Filters{}, types.GroupByTag)
		if err != nil {
			t.Fatal(err)
		}
		want := []types.GroupTotals{
			{GroupKey: "hosting", Metrics: map[string]float64{types.MetricCount: 2, types.MetricTotal: 175}},
			{GroupKey: "rent", Metrics: map[string]float64{types.MetricCount: 2, types.MetricTotal: 70}},
			{GroupKey: "untagged", Metrics: map[string]float64{types.MetricCount: 1, types.MetricTotal: -10}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FetchGroupTotals() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rejects invalid records", func(t *testing.T) {
		svc := newService(t)
		defer svc.Close()
		if _, err := svc.Create(context.Background(), types.Record{Kind: "memo"}); !errors.Is(err, remote.ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})
}

func fetchAll(t *testing.T, svc remote.Service, key types.ViewKey, limit int) []types.Record {
	t.Helper()
	req := remote.RequestFor(key, limit)
	var out []types.Record
	for i := 0; i < 100; i++ {
		page, err := svc.FetchPage(context.Background(), req)
		if err != nil {
			t.Fatalf("FetchPage() error: %v", err)
		}
		out = append(out, page.Rows...)
		if page.Done {
			return out
		}
		req.Cursor = page.NextCursor
	}
	t.Fatal("pagination did not terminate")
	return nil
}
