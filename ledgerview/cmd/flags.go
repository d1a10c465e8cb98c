package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/arthur-debert/ledgerview/types"
)

// addRecordFlags adds the flags that describe record fields
func addRecordFlags(flags *pflag.FlagSet) {
	flags.String("number", "", "Document number")
	flags.String("counterparty", "", "Counterparty name")
	flags.String("tag", "", "Tag")
	flags.String("notes", "", "Free-form notes")
	flags.String("total", "", "Total amount (empty clears it on edit)")
	flags.String("date", "", "Document date, YYYY-MM-DD (empty clears it on edit)")
}

// addFilterFlags adds the flags that narrow a view
func addFilterFlags(flags *pflag.FlagSet) {
	flags.String("entity", "", "Entity (documents|briefings); derived from --kind when omitted")
	flags.StringSlice("kind", []string{}, "Restrict to record kinds")
	flags.String("counterparty", "", "Filter by counterparty (case-insensitive)")
	flags.String("tag", "", "Filter by tag (case-insensitive)")
	flags.String("search", "", "Search number, counterparty, tag and notes")
	flags.String("from", "", "Earliest date, YYYY-MM-DD")
	flags.String("to", "", "Latest date, YYYY-MM-DD")
}

func parseKind(operation, s string) (types.Kind, error) {
	kind := types.Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !kind.Valid() {
		return "", NewValidationError(operation, "kind", s, CommonSuggestions.CheckKind)
	}
	return kind, nil
}

func parseRef(operation string, args []string) (types.Kind, int64, error) {
	kind, err := parseKind(operation, args[0])
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, NewValidationError(operation, "id", args[1], CommonSuggestions.CheckID)
	}
	return kind, id, nil
}

func parseTotal(operation, s string) (*float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, NewValidationError(operation, "total", s, "Use a decimal number such as 120.50")
	}
	return &v, nil
}

func parseDay(operation, field, s string) (*time.Time, error) {
	d, err := types.ParseDay(strings.TrimSpace(s))
	if err != nil {
		return nil, NewValidationError(operation, field, s, "Use the YYYY-MM-DD date format")
	}
	return d, nil
}

// recordFromFlags builds a new record from the add command's flags
func recordFromFlags(kind types.Kind, flags *pflag.FlagSet) (types.Record, error) {
	const op = "add record"
	rec := types.Record{Kind: kind}
	rec.Number, _ = flags.GetString("number")
	rec.Counterparty, _ = flags.GetString("counterparty")
	rec.Tag, _ = flags.GetString("tag")
	rec.Notes, _ = flags.GetString("notes")

	if s, _ := flags.GetString("total"); s != "" {
		total, err := parseTotal(op, s)
		if err != nil {
			return types.Record{}, err
		}
		rec.Total = total
	}
	if s, _ := flags.GetString("date"); s != "" {
		d, err := parseDay(op, "date", s)
		if err != nil {
			return types.Record{}, err
		}
		rec.Date = d
	}
	return rec, nil
}

// patchFromFlags builds a patch from the flags the user actually set. An
// explicitly empty --total or --date clears the field.
func patchFromFlags(flags *pflag.FlagSet) (types.Patch, error) {
	const op = "edit record"
	var p types.Patch

	for name, target := range map[string]**string{
		"number":       &p.Number,
		"counterparty": &p.Counterparty,
		"tag":          &p.Tag,
		"notes":        &p.Notes,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*target = &v
		}
	}

	if flags.Changed("total") {
		s, _ := flags.GetString("total")
		if strings.TrimSpace(s) == "" {
			p.ClearTotal = true
		} else {
			total, err := parseTotal(op, s)
			if err != nil {
				return types.Patch{}, err
			}
			p.Total = total
		}
	}
	if flags.Changed("date") {
		s, _ := flags.GetString("date")
		if strings.TrimSpace(s) == "" {
			p.ClearDate = true
		} else {
			d, err := parseDay(op, "date", s)
			if err != nil {
				return types.Patch{}, err
			}
			p.Date = d
		}
	}

	if p.IsEmpty() {
		return types.Patch{}, &CLIError{
			Operation:   op,
			Cause:       "no field to change",
			Suggestions: []string{"Pass at least one of --number, --counterparty, --tag, --notes, --total, --date"},
		}
	}
	return p, nil
}

// filtersFromFlags builds view filters and derives the entity
func filtersFromFlags(operation string, flags *pflag.FlagSet) (types.EntityType, types.Filters, error) {
	var f types.Filters

	kinds, _ := flags.GetStringSlice("kind")
	for _, k := range kinds {
		kind, err := parseKind(operation, k)
		if err != nil {
			return "", types.Filters{}, err
		}
		f.Kinds = append(f.Kinds, kind)
	}
	f.Counterparty, _ = flags.GetString("counterparty")
	f.Tag, _ = flags.GetString("tag")
	f.Search, _ = flags.GetString("search")

	for name, target := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if s, _ := flags.GetString(name); s != "" {
			d, err := parseDay(operation, name, s)
			if err != nil {
				return "", types.Filters{}, err
			}
			*target = d
		}
	}

	entity := types.EntityDocuments
	if s, _ := flags.GetString("entity"); s != "" {
		entity = types.EntityType(strings.ToLower(strings.TrimSpace(s)))
	} else if len(f.Kinds) > 0 {
		entity = f.Kinds[0].Entity()
	}
	return entity, f, nil
}

// viewKeyFromFlags builds the view key for the list command
func viewKeyFromFlags(flags *pflag.FlagSet) (types.ViewKey, error) {
	const op = "list records"
	entity, filters, err := filtersFromFlags(op, flags)
	if err != nil {
		return types.ViewKey{}, err
	}

	var spec types.SortSpec
	if s, _ := flags.GetString("sort"); s != "" {
		field, err := types.ParseSortField(s)
		if err != nil {
			return types.ViewKey{}, NewValidationError(op, "sort", s, sortSuggestion())
		}
		spec.Field = field
		spec.Descending, _ = flags.GetBool("desc")
	}

	mode, err := groupFromFlags(op, flags)
	if err != nil {
		return types.ViewKey{}, err
	}
	return types.NewViewKey(entity, filters, spec, mode), nil
}

func groupFromFlags(operation string, flags *pflag.FlagSet) (types.GroupingMode, error) {
	s, _ := flags.GetString("group")
	mode, err := types.ParseGroupingMode(s)
	if err != nil {
		return "", NewValidationError(operation, "group", s, "Use one of: none, month, counterparty, tag")
	}
	return mode, nil
}

func sortSuggestion() string {
	names := make([]string, len(types.SortFields))
	for i, f := range types.SortFields {
		names[i] = string(f)
	}
	return "Use one of: " + strings.Join(names, ", ")
}
