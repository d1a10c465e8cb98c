// Package order defines the total order of records within a view and the
// insertion-position engine that keeps a sorted view sorted as records are
// spliced in.
package order

import (
	"cmp"
	"strings"
	"time"

	"github.com/arthur-debert/ledgerview/types"
)

type valueKind int

const (
	nullValue valueKind = iota
	numberValue
	stringValue
	timeValue
)

// Value is a nullable sort value extracted from a record field
type Value struct {
	kind valueKind
	num  float64
	str  string
	t    time.Time
}

// Null is the absent value
var Null = Value{}

// Number wraps a numeric value
func Number(v float64) Value { return Value{kind: numberValue, num: v} }

// Text wraps a string value; the empty string is null
func Text(v string) Value {
	if strings.TrimSpace(v) == "" {
		return Null
	}
	return Value{kind: stringValue, str: v}
}

// Time wraps a time value; the zero time is null
func Time(v time.Time) Value {
	if v.IsZero() {
		return Null
	}
	return Value{kind: timeValue, t: v}
}

// IsNull reports whether the value is absent
func (v Value) IsNull() bool {
	return v.kind == nullValue
}

// ValueOf extracts the value of a sortable field from a record
func ValueOf(r types.Record, field types.SortField) Value {
	switch field {
	case types.SortByDate:
		if r.Date == nil {
			return Null
		}
		return Time(*r.Date)
	case types.SortByTotal:
		if r.Total == nil {
			return Null
		}
		return Number(*r.Total)
	case types.SortByNumber:
		return Text(r.Number)
	case types.SortByCounterparty:
		return Text(r.Counterparty)
	case types.SortByID:
		return Number(float64(r.ID))
	case types.SortByCreatedAt:
		return Time(r.CreatedAt)
	default:
		return Null
	}
}

// compareValues orders two non-null values ascending. Values of different
// kinds cannot occur for the same field; they fall back to kind order.
func compareValues(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case numberValue:
		return cmp.Compare(a.num, b.num)
	case stringValue:
		if c := strings.Compare(strings.ToLower(a.str), strings.ToLower(b.str)); c != 0 {
			return c
		}
		return strings.Compare(a.str, b.str)
	case timeValue:
		return a.t.Compare(b.t)
	default:
		return 0
	}
}

// Equal reports whether two values are equal under the sort order
func Equal(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return compareValues(a, b) == 0
}
