package order

import (
	"cmp"
	"sort"

	"github.com/arthur-debert/ledgerview/types"
)

// Compare orders two records under the sort spec:
//   - null values sort last in both directions
//   - non-null values compare ascending, or descending when spec.Descending
//   - ties (including two nulls) break by ID ascending, then by kind
//
// The remote query processor orders pages with the same function so server
// pages and local insertions agree.
func Compare(a, b types.Record, spec types.SortSpec) int {
	spec = spec.Normalize()
	va, vb := ValueOf(a, spec.Field), ValueOf(b, spec.Field)

	switch {
	case va.IsNull() && !vb.IsNull():
		return 1
	case !va.IsNull() && vb.IsNull():
		return -1
	case !va.IsNull() && !vb.IsNull():
		c := compareValues(va, vb)
		if spec.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}

	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Kind, b.Kind)
}

// FindInsertionIndex returns the index in [0, len(rows)] at which candidate
// must be spliced into rows, which must already be sorted under spec.
// The scan walks from the front and stops at the first row the candidate
// sorts before; a null candidate never stops before a non-null row.
func FindInsertionIndex(rows []types.Record, candidate types.Record, spec types.SortSpec) int {
	spec = spec.Normalize()
	cv := ValueOf(candidate, spec.Field)

	for i, row := range rows {
		rv := ValueOf(row, spec.Field)

		if cv.IsNull() {
			if !rv.IsNull() {
				continue
			}
			// both null: only the id tie-break applies
			if tieBreaksBefore(candidate, row) {
				return i
			}
			continue
		}

		if rv.IsNull() {
			// candidate goes before all trailing nulls
			return i
		}

		c := compareValues(cv, rv)
		if spec.Descending {
			c = -c
		}
		if c < 0 {
			return i
		}
		if c == 0 && tieBreaksBefore(candidate, row) {
			return i
		}
	}
	return len(rows)
}

// SearchInsertionIndex is the binary-search form of FindInsertionIndex.
// It returns the same index for any rows sorted under spec.
func SearchInsertionIndex(rows []types.Record, candidate types.Record, spec types.SortSpec) int {
	return sort.Search(len(rows), func(i int) bool {
		return Compare(candidate, rows[i], spec) < 0
	})
}

// IsSorted reports whether rows are in order under spec
func IsSorted(rows []types.Record, spec types.SortSpec) bool {
	for i := 1; i < len(rows); i++ {
		if Compare(rows[i-1], rows[i], spec) > 0 {
			return false
		}
	}
	return true
}

// Sort orders rows in place under spec
func Sort(rows []types.Record, spec types.SortSpec) {
	sort.SliceStable(rows, func(i, j int) bool {
		return Compare(rows[i], rows[j], spec) < 0
	})
}

func tieBreaksBefore(candidate, row types.Record) bool {
	if candidate.ID != row.ID {
		return candidate.ID < row.ID
	}
	return candidate.Kind < row.Kind
}
