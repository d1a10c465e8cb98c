// Package validation checks records, patches and view definitions before
// they reach a store.
package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/arthur-debert/ledgerview/types"
)

const (
	maxNumberLength = 64
	maxTextLength   = 512
	maxNotesLength  = 8192
)

// ValidateRecord checks a record that is about to be created
func ValidateRecord(r types.Record) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	if r.Kind.IsBilling() && strings.TrimSpace(r.Number) == "" {
		return fmt.Errorf("%s: number is required", r.Kind)
	}
	if err := validateText("number", r.Number, maxNumberLength); err != nil {
		return err
	}
	if err := validateText("counterparty", r.Counterparty, maxTextLength); err != nil {
		return err
	}
	if err := validateText("tag", r.Tag, maxTextLength); err != nil {
		return err
	}
	if err := validateText("notes", r.Notes, maxNotesLength); err != nil {
		return err
	}
	if r.Total != nil {
		if err := validateTotal(r.Kind, *r.Total); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePatch checks a patch against the kind of the record it targets
func ValidatePatch(kind types.Kind, p types.Patch) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", kind)
	}
	if p.IsEmpty() {
		return fmt.Errorf("patch changes no field")
	}
	if p.ClearTotal && p.Total != nil {
		return fmt.Errorf("patch both sets and clears the total")
	}
	if p.ClearDate && p.Date != nil {
		return fmt.Errorf("patch both sets and clears the date")
	}
	if p.Number != nil {
		if kind.IsBilling() && strings.TrimSpace(*p.Number) == "" {
			return fmt.Errorf("%s: number is required", kind)
		}
		if err := validateText("number", *p.Number, maxNumberLength); err != nil {
			return err
		}
	}
	if p.Counterparty != nil {
		if err := validateText("counterparty", *p.Counterparty, maxTextLength); err != nil {
			return err
		}
	}
	if p.Tag != nil {
		if err := validateText("tag", *p.Tag, maxTextLength); err != nil {
			return err
		}
	}
	if p.Notes != nil {
		if err := validateText("notes", *p.Notes, maxNotesLength); err != nil {
			return err
		}
	}
	if p.Total != nil {
		if err := validateTotal(kind, *p.Total); err != nil {
			return err
		}
	}
	return nil
}

// ValidateViewKey checks that a view key names a known entity, sort field and
// grouping mode
func ValidateViewKey(k types.ViewKey) error {
	k = k.Normalize()
	if k.Entity != types.EntityDocuments && k.Entity != types.EntityBriefings {
		return fmt.Errorf("unknown entity %q", k.Entity)
	}
	if !k.Sort.Field.Valid() {
		return fmt.Errorf("unknown sort field %q", k.Sort.Field)
	}
	if _, err := types.ParseGroupingMode(string(k.Grouping)); err != nil {
		return err
	}
	for _, kind := range k.Filters.Kinds {
		if kind.Entity() != k.Entity {
			return fmt.Errorf("kind %q does not belong to entity %q", kind, k.Entity)
		}
	}
	if k.Filters.From != nil && k.Filters.To != nil && k.Filters.From.After(*k.Filters.To) {
		return fmt.Errorf("date range starts after it ends")
	}
	return nil
}

func validateTotal(kind types.Kind, total float64) error {
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return fmt.Errorf("total must be a finite number")
	}
	if (kind == types.KindInvoice || kind == types.KindReceipt) && total < 0 {
		return fmt.Errorf("%s: total cannot be negative", kind)
	}
	return nil
}

func validateText(field, value string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%s is too long: %d bytes (maximum %d)", field, len(value), max)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains a NUL byte", field)
	}
	return nil
}
