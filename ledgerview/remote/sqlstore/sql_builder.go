package sqlstore

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/arthur-debert/ledgerview/types"
)

const recordsTable = "records"

var recordColumns = []string{
	"kind", "id", "number", "counterparty", "tag", "notes",
	"total", "date", "version", "created_at", "updated_at",
}

// sqlBuilder wraps squirrel to provide safe SQL generation
type sqlBuilder struct {
	sq squirrel.StatementBuilderType
}

// newSQLBuilder creates a new SQL builder
func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// buildInsert builds a safe INSERT query
func (b *sqlBuilder) buildInsert(table string, columns []string, values []interface{}) (string, []interface{}, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("no columns specified for insert")
	}
	if len(columns) != len(values) {
		return "", nil, fmt.Errorf("column count (%d) does not match value count (%d)", len(columns), len(values))
	}
	return b.sq.Insert(table).Columns(columns...).Values(values...).ToSql()
}

// buildSelectRecord builds a SELECT for a single record
func (b *sqlBuilder) buildSelectRecord(kind types.Kind, id int64) (string, []interface{}, error) {
	return b.sq.Select(recordColumns...).
		From(recordsTable).
		Where(squirrel.Eq{"kind": string(kind), "id": id}).
		ToSql()
}

// buildSelectCandidates narrows the records table to the rows a view could
// contain. Kind and date range are pushed into SQL; text filters are left to
// the query processor so both backends share one matching rule.
func (b *sqlBuilder) buildSelectCandidates(entity types.EntityType, filters types.Filters) (string, []interface{}, error) {
	kinds := filters.Kinds
	if len(kinds) == 0 {
		kinds = types.KindsOf(entity)
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	query := b.sq.Select(recordColumns...).
		From(recordsTable).
		Where(squirrel.Eq{"kind": names})
	if filters.From != nil {
		query = query.Where(squirrel.GtOrEq{"date": formatDay(*filters.From)})
	}
	if filters.To != nil {
		query = query.Where(squirrel.LtOrEq{"date": formatDay(*filters.To)})
	}
	return query.ToSql()
}

// buildUpdateByCondition builds a safe UPDATE query with a condition
func (b *sqlBuilder) buildUpdateByCondition(table string, setColumns []string, setValues []interface{}, condition squirrel.Eq) (string, []interface{}, error) {
	if len(setColumns) == 0 {
		return "", nil, fmt.Errorf("no columns specified for update")
	}
	if len(setColumns) != len(setValues) {
		return "", nil, fmt.Errorf("column count (%d) does not match value count (%d)", len(setColumns), len(setValues))
	}
	if len(condition) == 0 {
		return "", nil, fmt.Errorf("no condition specified for update")
	}

	update := b.sq.Update(table)
	for i, col := range setColumns {
		update = update.Set(col, setValues[i])
	}
	return update.Where(condition).ToSql()
}

// buildDelete builds a safe DELETE query with a single condition
func (b *sqlBuilder) buildDelete(table string, condition squirrel.Eq) (string, []interface{}, error) {
	if len(condition) == 0 {
		return "", nil, fmt.Errorf("no condition specified for delete")
	}
	return b.sq.Delete(table).Where(condition).ToSql()
}

// buildIncrement builds an UPDATE that bumps an integer column by one
func (b *sqlBuilder) buildIncrement(table, column string, condition squirrel.Eq) (string, []interface{}, error) {
	return b.sq.Update(table).
		Set(column, squirrel.Expr(column+" + 1")).
		Where(condition).
		ToSql()
}
