package grouping_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/ledgerview/order"
	"github.com/arthur-debert/ledgerview/types"
)

func party(id int64, counterparty string, total float64) types.Record {
	return types.Record{Kind: types.KindInvoice, ID: id, Counterparty: counterparty, Total: types.Float(total)}
}

func idsOf(rows []types.Record) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

var totalDesc = types.SortSpec{Field: types.SortByTotal, Descending: true}

// served is the order a grouped page is served in
func served(rows []types.Record, mode types.GroupingMode) []types.Record {
	out := slices.Clone(rows)
	order.Sort(out, totalDesc)
	grouping.RankClusters(out, totalDesc, mode)
	return out
}

func TestRankClusters(t *testing.T) {
	rows := []types.Record{
		party(1, "Globex", 900), party(3, "Acme", 120), party(2, "Globex", 10),
		party(5, "Initech", 50), party(4, "Acme", 100),
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4, 5}, idsOf(served(rows, types.GroupByCounterparty))); diff != "" {
		t.Errorf("grouped order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1, 3, 4, 5, 2}, idsOf(served(rows, types.GroupNone))); diff != "" {
		t.Errorf("ungrouped order mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertionIndexMatchesServedOrder(t *testing.T) {
	mode := types.GroupByCounterparty
	base := served([]types.Record{
		party(1, "Globex", 900), party(2, "Globex", 10),
		party(3, "Acme", 120), party(4, "Acme", 100), party(5, "Initech", 50),
	}, mode)

	tests := []struct {
		name string
		rec  types.Record
		want []int64
	}{
		{"inside its cluster", party(6, "Acme", 500), []int64{1, 2, 6, 3, 4, 5}},
		{"new leader moves the cluster up", party(7, "Acme", 1000), []int64{7, 3, 4, 1, 2, 5}},
		{"tail of a middle cluster", party(8, "Globex", 5), []int64{1, 2, 8, 3, 4, 5}},
		{"new cluster between others", party(9, "Umbrella", 200), []int64{1, 2, 9, 3, 4, 5}},
		{"new cluster at the end", party(10, "Hooli", 1), []int64{1, 2, 3, 4, 5, 10}},
		{"null total sorts last", types.Record{Kind: types.KindInvoice, ID: 11, Counterparty: "Acme"}, []int64{1, 2, 3, 4, 11, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := slices.Clone(base)
			idx := grouping.InsertionIndex(rows, tt.rec, totalDesc, mode)
			rows = slices.Insert(rows, idx, tt.rec)
			grouping.RankClusters(rows, totalDesc, mode)

			if diff := cmp.Diff(tt.want, idsOf(rows)); diff != "" {
				t.Errorf("order after insert mismatch (-want +got):\n%s", diff)
			}
			full := served(append(slices.Clone(base), tt.rec), mode)
			if diff := cmp.Diff(idsOf(full), idsOf(rows)); diff != "" {
				t.Errorf("incremental insert diverges from served order (-full +incremental):\n%s", diff)
			}
		})
	}
}

func TestInsertionIndexUngrouped(t *testing.T) {
	rows := served([]types.Record{party(1, "A", 30), party(2, "B", 20), party(3, "A", 10)}, types.GroupNone)
	if got := grouping.InsertionIndex(rows, party(4, "B", 25), totalDesc, types.GroupNone); got != 1 {
		t.Errorf("InsertionIndex() = %d, want 1", got)
	}
}
