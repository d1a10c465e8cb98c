// Package grouping partitions an already sorted page of records into
// contiguous runs that share a derived group key, and joins those groups with
// independently fetched aggregate totals.
package grouping

import (
	"strings"

	"github.com/arthur-debert/ledgerview/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fallback keys and labels for records without a value for the grouping field
const (
	NoDateKey           = "no-date"
	NoDateLabel         = "No date"
	NoCounterpartyKey   = "no-counterparty"
	NoCounterpartyLabel = "No counterparty"
	UntaggedKey         = "untagged"
	UntaggedLabel       = "Untagged"
	AllKey              = "all"
	AllLabel            = "All"
)

const (
	monthKeyLayout   = "2006-01"
	monthLabelLayout = "Jan/2006"
)

// DeriveKey returns the group key and human-readable label of a record under
// the given mode. It is a pure function of the record; the remote service
// uses it to cluster pages and to key totals, so rows and totals join by key
// equality.
func DeriveKey(r types.Record, mode types.GroupingMode) (key, label string) {
	switch mode.Normalize() {
	case types.GroupByMonth:
		if r.Date == nil {
			return NoDateKey, NoDateLabel
		}
		d := r.Date.UTC()
		return d.Format(monthKeyLayout), d.Format(monthLabelLayout)
	case types.GroupByCounterparty:
		name := strings.TrimSpace(r.Counterparty)
		if name == "" {
			return NoCounterpartyKey, NoCounterpartyLabel
		}
		return strings.ToLower(name), name
	case types.GroupByTag:
		tag := strings.TrimSpace(r.Tag)
		if tag == "" {
			return UntaggedKey, UntaggedLabel
		}
		return strings.ToLower(tag), cases.Title(language.Und).String(tag)
	default:
		return AllKey, AllLabel
	}
}

// Group partitions rows into contiguous runs sharing a derived key.
//
// rows must already be clustered so that rows with equal keys are adjacent;
// the engine never re-sorts. A key that reappears after a different key
// opens a second group with the same key instead of being merged, so an
// upstream ordering bug shows up as a duplicated header.
//
// GroupNone yields a single group holding every row in order. Empty input
// yields no groups.
func Group(rows []types.Record, mode types.GroupingMode) []types.Group {
	if len(rows) == 0 {
		return nil
	}

	mode = mode.Normalize()
	if mode == types.GroupNone {
		return []types.Group{{Key: AllKey, Label: AllLabel, Start: 0, Rows: rows}}
	}

	var groups []types.Group
	current := -1
	for i, row := range rows {
		key, label := DeriveKey(row, mode)
		if current < 0 || groups[current].Key != key {
			groups = append(groups, types.Group{Key: key, Label: label, Start: i})
			current = len(groups) - 1
		}
		groups[current].Rows = append(groups[current].Rows, row)
	}
	return groups
}

// Keys returns the group keys in order, duplicates included
func Keys(groups []types.Group) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}
