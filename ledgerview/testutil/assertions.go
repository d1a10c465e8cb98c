package testutil

import (
	"testing"

	"github.com/arthur-debert/ledgerview/ledgerview/order"
	"github.com/arthur-debert/ledgerview/types"
)

// AssertRecordCount checks that the slice contains the expected number of records
func AssertRecordCount(t *testing.T, rows []types.Record, expected int, context ...string) {
	t.Helper()
	if len(rows) != expected {
		ctx := ""
		if len(context) > 0 {
			ctx = " " + context[0]
		}
		t.Errorf("expected %d records%s, got %d", expected, ctx, len(rows))
	}
}

// AssertContains verifies that a record with the given identity is in the slice
func AssertContains(t *testing.T, rows []types.Record, ref types.RecordRef) {
	t.Helper()
	for _, r := range rows {
		if r.Ref() == ref {
			return
		}
	}
	t.Errorf("%s %d not found in rows", ref.Kind, ref.ID)
}

// AssertNotContains verifies that no record with the given identity is in the slice
func AssertNotContains(t *testing.T, rows []types.Record, ref types.RecordRef) {
	t.Helper()
	for _, r := range rows {
		if r.Ref() == ref {
			t.Errorf("%s %d should not be in rows", ref.Kind, ref.ID)
			return
		}
	}
}

// AssertSorted verifies that rows are ordered under spec, using the same
// comparator the insertion engine uses
func AssertSorted(t *testing.T, rows []types.Record, spec types.SortSpec) {
	t.Helper()
	for i := 1; i < len(rows); i++ {
		if order.Compare(rows[i-1], rows[i], spec) > 0 {
			t.Errorf("rows not ordered by %s at positions %d,%d: %s %d before %s %d",
				spec, i-1, i, rows[i-1].Kind, rows[i-1].ID, rows[i].Kind, rows[i].ID)
		}
	}
}

// AssertNumbersInOrder verifies that rows carry exactly the given document
// numbers, in order
func AssertNumbersInOrder(t *testing.T, rows []types.Record, expected ...string) {
	t.Helper()
	if len(rows) != len(expected) {
		t.Errorf("expected %d records, got %d: %v", len(expected), len(rows), Numbers(rows))
		return
	}
	for i, want := range expected {
		if rows[i].Number != want {
			t.Errorf("position %d: expected %s, got %s (all: %v)", i, want, rows[i].Number, Numbers(rows))
		}
	}
}

// AssertGroupKeys verifies the keys of a grouping result, in order
func AssertGroupKeys(t *testing.T, groups []types.Group, expected ...string) {
	t.Helper()
	if len(groups) != len(expected) {
		t.Errorf("expected %d groups, got %d", len(expected), len(groups))
		return
	}
	for i, want := range expected {
		if groups[i].Key != want {
			t.Errorf("group %d: expected key %q, got %q", i, want, groups[i].Key)
		}
	}
}

// Numbers returns the document numbers of rows, for failure messages
func Numbers(rows []types.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Number
	}
	return out
}
