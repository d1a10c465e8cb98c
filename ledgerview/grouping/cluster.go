package grouping

import (
	"sort"

	"github.com/arthur-debert/ledgerview/ledgerview/order"
	"github.com/arthur-debert/ledgerview/types"
)

// RankClusters reorders rows in place so that rows sharing a group key are
// contiguous and clusters are ranked by their first row under spec. Rows
// keep their relative order inside a cluster. With GroupNone rows are left
// untouched.
//
// This is the order grouped pages are served in, and the order the
// propagator restores after each local mutation.
func RankClusters(rows []types.Record, spec types.SortSpec, mode types.GroupingMode) {
	if mode.Normalize() == types.GroupNone || len(rows) < 2 {
		return
	}

	index := make(map[string]int)
	var clusters [][]types.Record
	for _, r := range rows {
		key, _ := DeriveKey(r, mode)
		i, ok := index[key]
		if !ok {
			i = len(clusters)
			index[key] = i
			clusters = append(clusters, nil)
		}
		clusters[i] = append(clusters[i], r)
	}
	sort.SliceStable(clusters, func(a, b int) bool {
		return order.Compare(clusters[a][0], clusters[b][0], spec) < 0
	})

	n := 0
	for _, c := range clusters {
		n += copy(rows[n:], c)
	}
}

// InsertionIndex returns the index at which rec lands in rows once the view
// is back in RankClusters order. rows must already be in that order.
//
// Inside its own cluster rec takes the position FindInsertionIndex gives it.
// When rec would lead its cluster, or opens a new one, the cluster is ranked
// by rec and the index is the start of the first cluster rec sorts before.
// Splicing rec in at the returned index and calling RankClusters yields the
// full order.
func InsertionIndex(rows []types.Record, rec types.Record, spec types.SortSpec, mode types.GroupingMode) int {
	if mode.Normalize() == types.GroupNone {
		return order.FindInsertionIndex(rows, rec, spec)
	}

	key, _ := DeriveKey(rec, mode)
	start, end := -1, len(rows)
	for i, r := range rows {
		k, _ := DeriveKey(r, mode)
		if start < 0 && k == key {
			start = i
			continue
		}
		if start >= 0 && k != key {
			end = i
			break
		}
	}
	if start >= 0 {
		if i := start + order.FindInsertionIndex(rows[start:end], rec, spec); i > start {
			return i
		}
	}

	prev := ""
	for i, r := range rows {
		k, _ := DeriveKey(r, mode)
		if i > 0 && k == prev {
			continue
		}
		prev = k
		if order.Compare(rec, r, spec) < 0 {
			return i
		}
	}
	return len(rows)
}
