package types

import "time"

// Patch lists the patchable fields of a record. Nil pointers leave the
// field untouched; ClearTotal and ClearDate set the nullable fields to null.
type Patch struct {
	Number       *string    `json:"number,omitempty" yaml:"number,omitempty"`
	Counterparty *string    `json:"counterparty,omitempty" yaml:"counterparty,omitempty"`
	Tag          *string    `json:"tag,omitempty" yaml:"tag,omitempty"`
	Notes        *string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Total        *float64   `json:"total,omitempty" yaml:"total,omitempty"`
	ClearTotal   bool       `json:"clear_total,omitempty" yaml:"clear_total,omitempty"`
	Date         *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	ClearDate    bool       `json:"clear_date,omitempty" yaml:"clear_date,omitempty"`

	// Version is the server version of the snapshot this patch produced.
	// Zero disables stale-update detection.
	Version int64 `json:"version,omitempty" yaml:"version,omitempty"`
	// UpdatedAt is copied onto the merged snapshot when set
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsEmpty reports whether the patch changes no field
func (p Patch) IsEmpty() bool {
	return p.Number == nil && p.Counterparty == nil && p.Tag == nil && p.Notes == nil &&
		p.Total == nil && !p.ClearTotal && p.Date == nil && !p.ClearDate
}

// Touches reports whether the patch may change the value of the sort field
func (p Patch) Touches(field SortField) bool {
	switch field {
	case SortByDate:
		return p.Date != nil || p.ClearDate
	case SortByTotal:
		return p.Total != nil || p.ClearTotal
	case SortByNumber:
		return p.Number != nil
	case SortByCounterparty:
		return p.Counterparty != nil
	case SortByID, SortByCreatedAt:
		return false
	default:
		// unknown fields cannot be ruled out
		return true
	}
}

// Apply returns a new snapshot with the patch merged over r; patched fields win
func (p Patch) Apply(r Record) Record {
	out := r.Clone()
	if p.Number != nil {
		out.Number = *p.Number
	}
	if p.Counterparty != nil {
		out.Counterparty = *p.Counterparty
	}
	if p.Tag != nil {
		out.Tag = *p.Tag
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	switch {
	case p.ClearTotal:
		out.Total = nil
	case p.Total != nil:
		v := *p.Total
		out.Total = &v
	}
	switch {
	case p.ClearDate:
		out.Date = nil
	case p.Date != nil:
		v := TruncateDay(*p.Date)
		out.Date = &v
	}
	if p.Version != 0 {
		out.Version = p.Version
	}
	if !p.UpdatedAt.IsZero() {
		out.UpdatedAt = p.UpdatedAt
	}
	return out
}

// Diff builds the patch that turns old into updated. Version and UpdatedAt
// are taken from updated.
func Diff(old, updated Record) Patch {
	p := Patch{Version: updated.Version, UpdatedAt: updated.UpdatedAt}
	if old.Number != updated.Number {
		p.Number = String(updated.Number)
	}
	if old.Counterparty != updated.Counterparty {
		p.Counterparty = String(updated.Counterparty)
	}
	if old.Tag != updated.Tag {
		p.Tag = String(updated.Tag)
	}
	if old.Notes != updated.Notes {
		p.Notes = String(updated.Notes)
	}
	switch {
	case updated.Total == nil && old.Total != nil:
		p.ClearTotal = true
	case updated.Total != nil && (old.Total == nil || *old.Total != *updated.Total):
		p.Total = Float(*updated.Total)
	}
	switch {
	case updated.Date == nil && old.Date != nil:
		p.ClearDate = true
	case updated.Date != nil && (old.Date == nil || !old.Date.Equal(*updated.Date)):
		d := *updated.Date
		p.Date = &d
	}
	return p
}
