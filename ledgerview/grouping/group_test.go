package grouping_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/types"
)

func dated(id int64, date string) types.Record {
	r := types.Record{Kind: types.KindInvoice, ID: id}
	if date != "" {
		d, err := types.ParseDay(date)
		if err != nil {
			panic(err)
		}
		r.Date = d
	}
	return r
}

type groupShape struct {
	Key   string
	Label string
	Start int
	IDs   []int64
}

func shape(groups []types.Group) []groupShape {
	out := make([]groupShape, len(groups))
	for i, g := range groups {
		ids := make([]int64, len(g.Rows))
		for j, r := range g.Rows {
			ids[j] = r.ID
		}
		out[i] = groupShape{Key: g.Key, Label: g.Label, Start: g.Start, IDs: ids}
	}
	return out
}

func TestGroupByMonth(t *testing.T) {
	t.Run("clustered input", func(t *testing.T) {
		rows := []types.Record{dated(1, "2024-03-01"), dated(2, "2024-03-15"), dated(3, "2024-01-10")}
		got := shape(grouping.Group(rows, types.GroupByMonth))
		want := []groupShape{
			{Key: "2024-03", Label: "Mar/2024", Start: 0, IDs: []int64{1, 2}},
			{Key: "2024-01", Label: "Jan/2024", Start: 2, IDs: []int64{3}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Group() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("non-contiguous key opens a second group", func(t *testing.T) {
		rows := []types.Record{dated(1, "2024-03-01"), dated(3, "2024-01-10"), dated(2, "2024-03-15")}
		got := shape(grouping.Group(rows, types.GroupByMonth))
		want := []groupShape{
			{Key: "2024-03", Label: "Mar/2024", Start: 0, IDs: []int64{1}},
			{Key: "2024-01", Label: "Jan/2024", Start: 1, IDs: []int64{3}},
			{Key: "2024-03", Label: "Mar/2024", Start: 2, IDs: []int64{2}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Group() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing dates fall into the fallback group", func(t *testing.T) {
		rows := []types.Record{dated(1, "2024-03-01"), dated(2, ""), dated(3, "")}
		got := grouping.Group(rows, types.GroupByMonth)
		if len(got) != 2 || got[1].Key != grouping.NoDateKey || got[1].Label != grouping.NoDateLabel {
			t.Errorf("unexpected groups: %+v", shape(got))
		}
	})
}

func TestGroupModes(t *testing.T) {
	rows := []types.Record{
		{Kind: types.KindInvoice, ID: 1, Counterparty: "Acme", Tag: "cloud hosting"},
		{Kind: types.KindInvoice, ID: 2, Counterparty: " acme ", Tag: "Cloud Hosting"},
		{Kind: types.KindInvoice, ID: 3, Counterparty: "", Tag: ""},
	}

	t.Run("counterparty", func(t *testing.T) {
		got := shape(grouping.Group(rows, types.GroupByCounterparty))
		want := []groupShape{
			{Key: "acme", Label: "Acme", Start: 0, IDs: []int64{1, 2}},
			{Key: grouping.NoCounterpartyKey, Label: grouping.NoCounterpartyLabel, Start: 2, IDs: []int64{3}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tag", func(t *testing.T) {
		got := shape(grouping.Group(rows, types.GroupByTag))
		want := []groupShape{
			{Key: "cloud hosting", Label: "Cloud Hosting", Start: 0, IDs: []int64{1, 2}},
			{Key: grouping.UntaggedKey, Label: grouping.UntaggedLabel, Start: 2, IDs: []int64{3}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("none keeps a single group in order", func(t *testing.T) {
		got := shape(grouping.Group(rows, types.GroupNone))
		want := []groupShape{{Key: grouping.AllKey, Label: grouping.AllLabel, Start: 0, IDs: []int64{1, 2, 3}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := grouping.Group(nil, types.GroupByTag); len(got) != 0 {
			t.Errorf("expected no groups, got %d", len(got))
		}
	})
}

func TestGroupIsIdempotent(t *testing.T) {
	rows := []types.Record{dated(4, "2024-05-02"), dated(1, "2024-03-01"), dated(7, "2024-05-20"), dated(2, "")}
	first := grouping.Group(rows, types.GroupByMonth)
	second := grouping.Group(rows, types.GroupByMonth)
	if diff := cmp.Diff(shape(first), shape(second)); diff != "" {
		t.Errorf("regrouping changed the result (-first +second):\n%s", diff)
	}
	if len(first) != 4 {
		t.Errorf("expected 4 groups for unclustered input, got %v", grouping.Keys(first))
	}
}
