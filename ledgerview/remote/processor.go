package remote

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/ledgerview/order"
	"github.com/arthur-debert/ledgerview/types"
)

// Processor runs view queries against an in-memory record set: filtering,
// clustering by group key, ordering and pagination. Both bundled services
// delegate to it so their pages agree with the local insertion order.
type Processor struct{}

// NewProcessor creates a query processor
func NewProcessor() *Processor {
	return &Processor{}
}

// Filter returns the records of entity that match filters
func (p *Processor) Filter(records []types.Record, entity types.EntityType, filters types.Filters) []types.Record {
	filters = filters.Normalize()
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if r.Entity() != entity {
			continue
		}
		if !filters.Matches(r) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// Order sorts records for a view. With a grouping mode the records are
// clustered by group key and clusters are ranked by their first record under
// the view's sort spec, so month groups follow the date direction and the
// first page starts with the group holding the view's leading record.
func (p *Processor) Order(records []types.Record, spec types.SortSpec, mode types.GroupingMode) {
	order.Sort(records, spec)
	grouping.RankClusters(records, spec, mode)
}

// Execute answers a page request against the full record set
func (p *Processor) Execute(records []types.Record, req PageRequest) (Page, error) {
	offset, err := DecodeCursor(req.Cursor)
	if err != nil {
		return Page{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	result := p.Filter(records, req.Entity, req.Filters)
	p.Order(result, req.Sort, req.Grouping)

	if offset >= len(result) {
		return Page{Rows: []types.Record{}, Done: true}, nil
	}
	end := offset + limit
	if end >= len(result) {
		return Page{Rows: result[offset:], Done: true}, nil
	}
	return Page{Rows: result[offset:end], NextCursor: EncodeCursor(end)}, nil
}

// Totals aggregates the matching records per group key
func (p *Processor) Totals(records []types.Record, entity types.EntityType, filters types.Filters, mode types.GroupingMode) []types.GroupTotals {
	return grouping.Aggregate(p.Filter(records, entity, filters), mode)
}

const cursorPrefix = "o:"

// EncodeCursor turns a row offset into an opaque cursor
func EncodeCursor(offset int) string {
	return cursorPrefix + strconv.Itoa(offset)
}

// DecodeCursor parses a cursor produced by EncodeCursor; empty means offset 0
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, ok := strings.CutPrefix(cursor, cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return n, nil
}

// ShiftCursor moves an offset cursor by delta rows, for windows that gained
// or lost rows locally since the cursor was issued. Offsets never drop below
// zero.
func ShiftCursor(cursor string, delta int) (string, error) {
	if cursor == "" || delta == 0 {
		return cursor, nil
	}
	n, err := DecodeCursor(cursor)
	if err != nil {
		return "", err
	}
	return EncodeCursor(max(n+delta, 0)), nil
}
