package types

import (
	"slices"
	"strings"
	"time"
)

// Filters is the normalized filter set of a view.
// All criteria are combined with AND; empty criteria match everything.
type Filters struct {
	Kinds        []Kind     `json:"kinds,omitempty" yaml:"kinds,omitempty"`
	Counterparty string     `json:"counterparty,omitempty" yaml:"counterparty,omitempty"`
	Tag          string     `json:"tag,omitempty" yaml:"tag,omitempty"`
	Search       string     `json:"search,omitempty" yaml:"search,omitempty"`
	From         *time.Time `json:"from,omitempty" yaml:"from,omitempty"`
	To           *time.Time `json:"to,omitempty" yaml:"to,omitempty"`
}

// Normalize returns a canonical copy: kinds sorted and deduplicated,
// strings trimmed, dates truncated to the day
func (f Filters) Normalize() Filters {
	out := Filters{
		Counterparty: strings.TrimSpace(f.Counterparty),
		Tag:          strings.TrimSpace(f.Tag),
		Search:       strings.TrimSpace(f.Search),
	}
	if len(f.Kinds) > 0 {
		kinds := slices.Clone(f.Kinds)
		slices.Sort(kinds)
		out.Kinds = slices.Compact(kinds)
	}
	if f.From != nil {
		d := TruncateDay(*f.From)
		out.From = &d
	}
	if f.To != nil {
		d := TruncateDay(*f.To)
		out.To = &d
	}
	return out
}

// Matches reports whether the record satisfies every criterion.
// Counterparty and tag compare case-insensitively; search is a
// case-insensitive substring match on number, counterparty, tag and notes.
func (f Filters) Matches(r Record) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
		return false
	}
	if f.Counterparty != "" && !strings.EqualFold(strings.TrimSpace(r.Counterparty), strings.TrimSpace(f.Counterparty)) {
		return false
	}
	if f.Tag != "" && !strings.EqualFold(strings.TrimSpace(r.Tag), strings.TrimSpace(f.Tag)) {
		return false
	}
	if f.From != nil || f.To != nil {
		if r.Date == nil {
			return false
		}
		day := TruncateDay(*r.Date)
		if f.From != nil && day.Before(TruncateDay(*f.From)) {
			return false
		}
		if f.To != nil && day.After(TruncateDay(*f.To)) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		haystack := strings.ToLower(strings.Join([]string{r.Number, r.Counterparty, r.Tag, r.Notes}, "\x00"))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

// canonical renders the filters deterministically; the input must be normalized
func (f Filters) canonical() string {
	var b strings.Builder
	b.WriteString("kinds=")
	for i, k := range f.Kinds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(k))
	}
	b.WriteString(";cp=")
	b.WriteString(strings.ToLower(f.Counterparty))
	b.WriteString(";tag=")
	b.WriteString(strings.ToLower(f.Tag))
	b.WriteString(";q=")
	b.WriteString(strings.ToLower(f.Search))
	b.WriteString(";from=")
	if f.From != nil {
		b.WriteString(f.From.Format(DayLayout))
	}
	b.WriteString(";to=")
	if f.To != nil {
		b.WriteString(f.To.Format(DayLayout))
	}
	return b.String()
}

// ViewKey identifies one view: an (entity, filters, sort, grouping) combination.
// Surfaces with equal keys share a single view cache.
type ViewKey struct {
	Entity   EntityType
	Filters  Filters
	Sort     SortSpec
	Grouping GroupingMode
}

// NewViewKey builds a normalized key
func NewViewKey(entity EntityType, filters Filters, sort SortSpec, grouping GroupingMode) ViewKey {
	return ViewKey{
		Entity:   entity,
		Filters:  filters.Normalize(),
		Sort:     sort.Normalize(),
		Grouping: grouping.Normalize(),
	}
}

// Normalize returns the canonical form of k
func (k ViewKey) Normalize() ViewKey {
	return NewViewKey(k.Entity, k.Filters, k.Sort, k.Grouping)
}

// ID returns the deterministic string form of the key. Keys with equal IDs
// denote the same view.
func (k ViewKey) ID() string {
	n := k.Normalize()
	return string(n.Entity) + "|" + n.Filters.canonical() + "|sort=" + n.Sort.String() + "|group=" + string(n.Grouping)
}

// Equal reports whether both keys denote the same view
func (k ViewKey) Equal(other ViewKey) bool {
	return k.ID() == other.ID()
}

// String implements fmt.Stringer
func (k ViewKey) String() string {
	return k.ID()
}
