package types

import "time"

// EntityType names the logical record set a view is built over.
// Propagation fans out to every view of the same entity type.
type EntityType string

const (
	// EntityDocuments covers billing documents (invoices, receipts, credit notes)
	EntityDocuments EntityType = "documents"
	// EntityBriefings covers project briefing configuration records
	EntityBriefings EntityType = "briefings"
)

// Kind is the record kind. A record is identified by (Kind, ID); ID alone is
// not unique across kinds.
type Kind string

const (
	KindInvoice    Kind = "invoice"
	KindReceipt    Kind = "receipt"
	KindCreditNote Kind = "credit_note"
	KindBriefing   Kind = "briefing"
)

// Kinds lists every known kind in canonical order
var Kinds = []Kind{KindInvoice, KindReceipt, KindCreditNote, KindBriefing}

// KindsOf returns the kinds that belong to entity, in canonical order
func KindsOf(entity EntityType) []Kind {
	var out []Kind
	for _, k := range Kinds {
		if k.Entity() == entity {
			out = append(out, k)
		}
	}
	return out
}

// Entity returns the entity type the kind belongs to.
// Unknown kinds map to the empty entity and never match a view.
func (k Kind) Entity() EntityType {
	switch k {
	case KindInvoice, KindReceipt, KindCreditNote:
		return EntityDocuments
	case KindBriefing:
		return EntityBriefings
	default:
		return ""
	}
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	return k.Entity() != ""
}

// IsBilling reports whether records of this kind carry billing data
// (a document number and a total)
func (k Kind) IsBilling() bool {
	return k.Entity() == EntityDocuments
}

// RecordRef is the composite identity of a record
type RecordRef struct {
	Kind Kind
	ID   int64
}

// Record is an immutable snapshot of a billing document or briefing.
// A mutation produces a new snapshot that replaces the old one.
type Record struct {
	Kind         Kind       `json:"kind" yaml:"kind"`
	ID           int64      `json:"id" yaml:"id"`
	Number       string     `json:"number,omitempty" yaml:"number,omitempty"`
	Counterparty string     `json:"counterparty,omitempty" yaml:"counterparty,omitempty"`
	Tag          string     `json:"tag,omitempty" yaml:"tag,omitempty"`
	Notes        string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Total        *float64   `json:"total,omitempty" yaml:"total,omitempty"`
	Date         *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	Version      int64      `json:"version" yaml:"version"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Ref returns the record's composite identity
func (r Record) Ref() RecordRef {
	return RecordRef{Kind: r.Kind, ID: r.ID}
}

// Entity returns the entity type derived from the record kind
func (r Record) Entity() EntityType {
	return r.Kind.Entity()
}

// Clone returns a copy that shares no pointers with r
func (r Record) Clone() Record {
	out := r
	if r.Total != nil {
		v := *r.Total
		out.Total = &v
	}
	if r.Date != nil {
		v := *r.Date
		out.Date = &v
	}
	return out
}

// Float returns a pointer to v, for building records and patches
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to v
func String(v string) *string {
	return &v
}

// Day returns a pointer to the UTC midnight of the given calendar day
func Day(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// ParseDay parses a YYYY-MM-DD date into a day pointer
func ParseDay(s string) (*time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DayLayout is the textual format of record dates
const DayLayout = "2006-01-02"

// TruncateDay normalizes t to UTC midnight of its calendar day
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
