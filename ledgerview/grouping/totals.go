package grouping

import (
	"sort"

	"github.com/arthur-debert/ledgerview/types"
)

// TotalsForGroup looks up the metrics of one group key. The lookup is by
// plain key equality against a list fetched separately from the rows.
func TotalsForGroup(list []types.GroupTotals, groupKey string) (map[string]float64, bool) {
	for _, t := range list {
		if t.GroupKey == groupKey {
			return t.Metrics, true
		}
	}
	return nil, false
}

// SelectTotals picks the totals list to render. A non-nil optimistic list
// replaces the fetched list wholesale; the two are never merged field by
// field, so untouched groups may show stale totals until the next fetch.
func SelectTotals(fetched, optimistic []types.GroupTotals) []types.GroupTotals {
	if optimistic != nil {
		return optimistic
	}
	return fetched
}

// Aggregate computes count and total per group key for records, in key order.
// The remote services use it to answer totals queries.
func Aggregate(records []types.Record, mode types.GroupingMode) []types.GroupTotals {
	byKey := make(map[string]map[string]float64)
	for _, r := range records {
		key, _ := DeriveKey(r, mode)
		m, ok := byKey[key]
		if !ok {
			m = map[string]float64{types.MetricCount: 0, types.MetricTotal: 0}
			byKey[key] = m
		}
		m[types.MetricCount]++
		if r.Total != nil {
			m[types.MetricTotal] += *r.Total
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.GroupTotals, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.GroupTotals{GroupKey: k, Metrics: byKey[k]})
	}
	return out
}
