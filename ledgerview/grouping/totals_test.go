package grouping_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/types"
)

func TestTotalsForGroup(t *testing.T) {
	list := []types.GroupTotals{
		{GroupKey: "2024-03", Metrics: map[string]float64{types.MetricCount: 2, types.MetricTotal: 150}},
		{GroupKey: "2024-01", Metrics: map[string]float64{types.MetricCount: 1, types.MetricTotal: 50}},
	}

	m, ok := grouping.TotalsForGroup(list, "2024-01")
	if !ok || m[types.MetricTotal] != 50 {
		t.Errorf("TotalsForGroup() = %v, %v", m, ok)
	}
	if _, ok := grouping.TotalsForGroup(list, "2023-12"); ok {
		t.Error("expected absent totals for unknown key")
	}
}

func TestSelectTotals(t *testing.T) {
	fetched := []types.GroupTotals{
		{GroupKey: "a", Metrics: map[string]float64{types.MetricTotal: 1}},
		{GroupKey: "b", Metrics: map[string]float64{types.MetricTotal: 2}},
	}
	optimistic := []types.GroupTotals{
		{GroupKey: "a", Metrics: map[string]float64{types.MetricTotal: 10}},
	}

	got := grouping.SelectTotals(fetched, optimistic)
	if diff := cmp.Diff(optimistic, got); diff != "" {
		t.Errorf("optimistic list must win wholesale (-want +got):\n%s", diff)
	}
	if _, ok := grouping.TotalsForGroup(got, "b"); ok {
		t.Error("lists must not be merged")
	}

	if diff := cmp.Diff(fetched, grouping.SelectTotals(fetched, nil)); diff != "" {
		t.Errorf("without an optimistic list the fetched list is used (-want +got):\n%s", diff)
	}
}

func TestAggregate(t *testing.T) {
	records := []types.Record{
		{Kind: types.KindInvoice, ID: 1, Total: types.Float(100), Date: types.Day(2024, 3, 1)},
		{Kind: types.KindInvoice, ID: 2, Total: types.Float(50), Date: types.Day(2024, 3, 9)},
		{Kind: types.KindInvoice, ID: 3, Date: types.Day(2024, 1, 9)},
	}
	got := grouping.Aggregate(records, types.GroupByMonth)
	want := []types.GroupTotals{
		{GroupKey: "2024-01", Metrics: map[string]float64{types.MetricCount: 1, types.MetricTotal: 0}},
		{GroupKey: "2024-03", Metrics: map[string]float64{types.MetricCount: 2, types.MetricTotal: 150}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}

	groups := grouping.Group(records, types.GroupByMonth)
	for _, g := range groups {
		if _, ok := grouping.TotalsForGroup(got, g.Key); !ok {
			t.Errorf("group %q has no totals; keys must join", g.Key)
		}
	}
}

func TestCollapseState(t *testing.T) {
	var s grouping.CollapseState
	if s.IsCollapsed("2024-03") {
		t.Error("zero value must have everything expanded")
	}
	s.Collapse("2024-03")
	if !s.IsCollapsed("2024-03") {
		t.Error("expected collapsed")
	}
	if !s.Expand("2024-03") {
		t.Error("Expand must report the previous collapsed state")
	}
	if s.Toggle("x") != true || s.Toggle("x") != false {
		t.Error("Toggle must flip the state")
	}
	s.Collapse("b")
	s.Collapse("a")
	if diff := cmp.Diff([]string{"a", "b"}, s.Collapsed()); diff != "" {
		t.Errorf("Collapsed() mismatch:\n%s", diff)
	}
}
