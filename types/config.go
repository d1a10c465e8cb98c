package types

import (
	"fmt"
	"strings"
)

// SortField is one of the fixed set of sortable record attributes
type SortField string

const (
	SortByDate         SortField = "date"
	SortByTotal        SortField = "total"
	SortByNumber       SortField = "number"
	SortByCounterparty SortField = "counterparty"
	SortByID           SortField = "id"
	SortByCreatedAt    SortField = "created_at"
)

// SortFields lists every sortable field
var SortFields = []SortField{
	SortByDate, SortByTotal, SortByNumber, SortByCounterparty, SortByID, SortByCreatedAt,
}

// Valid reports whether f is a sortable field
func (f SortField) Valid() bool {
	for _, known := range SortFields {
		if f == known {
			return true
		}
	}
	return false
}

// ParseSortField converts user input such as "Date" or "created-at" to a SortField
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !f.Valid() {
		return "", fmt.Errorf("unknown sort field %q", s)
	}
	return f, nil
}

// SortSpec governs both server page ordering and local insertion.
// The zero value means date descending.
type SortSpec struct {
	Field      SortField `json:"field" yaml:"field"`
	Descending bool      `json:"descending" yaml:"descending"`
}

// Normalize fills in the default sort
func (s SortSpec) Normalize() SortSpec {
	if s.Field == "" {
		return SortSpec{Field: SortByDate, Descending: true}
	}
	return s
}

// String renders the spec as "field asc|desc"
func (s SortSpec) String() string {
	s = s.Normalize()
	dir := "asc"
	if s.Descending {
		dir = "desc"
	}
	return string(s.Field) + " " + dir
}

// GroupingMode selects how a sorted page is partitioned into groups
type GroupingMode string

const (
	GroupNone           GroupingMode = "none"
	GroupByMonth        GroupingMode = "month"
	GroupByCounterparty GroupingMode = "counterparty"
	GroupByTag          GroupingMode = "tag"
)

// GroupingModes lists every grouping mode
var GroupingModes = []GroupingMode{GroupNone, GroupByMonth, GroupByCounterparty, GroupByTag}

// Normalize maps the empty mode to GroupNone
func (m GroupingMode) Normalize() GroupingMode {
	if m == "" {
		return GroupNone
	}
	return m
}

// ParseGroupingMode converts user input to a GroupingMode
func ParseGroupingMode(s string) (GroupingMode, error) {
	m := GroupingMode(strings.ToLower(strings.TrimSpace(s))).Normalize()
	for _, known := range GroupingModes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown grouping mode %q", s)
}
