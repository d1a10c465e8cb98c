// Package sqlstore implements the remote data service on SQLite, using the
// pure-Go modernc.org/sqlite driver.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/arthur-debert/ledgerview/internal/validation"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/types"
)

//go:embed sql/schema.sql
var schemaSQL string

// Store implements remote.Service on a SQLite database
type Store struct {
	db         *sql.DB
	sqlBuilder *sqlBuilder
	processor  *remote.Processor
	timeFunc   func() time.Time
}

var _ remote.Service = (*Store)(nil)

// Option is a function that modifies Store configuration
type Option func(*Store)

// WithTimeFunc sets a custom time function for testing
func WithTimeFunc(fn func() time.Time) Option {
	return func(s *Store) {
		s.timeFunc = fn
	}
}

// Open opens (creating if needed) the database at dbPath and applies the schema
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set busy timeout first to help with concurrent access during initialization
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// another connection may already hold the WAL switch
			if pragma == "PRAGMA journal_mode = WAL" && strings.Contains(err.Error(), "database is locked") {
				continue
			}
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	// Single writer connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{
		db:         db,
		sqlBuilder: newSQLBuilder(),
		processor:  remote.NewProcessor(),
		timeFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases database resources
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchPage implements remote.Service
func (s *Store) FetchPage(ctx context.Context, req remote.PageRequest) (remote.Page, error) {
	candidates, err := s.candidates(ctx, req.Entity, req.Filters)
	if err != nil {
		return remote.Page{}, err
	}
	return s.processor.Execute(candidates, req)
}

// FetchGroupTotals implements remote.Service
func (s *Store) FetchGroupTotals(ctx context.Context, entity types.EntityType, filters types.Filters, mode types.GroupingMode) ([]types.GroupTotals, error) {
	candidates, err := s.candidates(ctx, entity, filters)
	if err != nil {
		return nil, err
	}
	return s.processor.Totals(candidates, entity, filters, mode), nil
}

// Get implements remote.Service
func (s *Store) Get(ctx context.Context, kind types.Kind, id int64) (types.Record, error) {
	return s.get(ctx, s.db, kind, id)
}

// Create implements remote.Service
func (s *Store) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	if err := validation.ValidateRecord(rec); err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", remote.ErrInvalidRecord, err)
	}

	var created types.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.sqlBuilder.sq.Insert("sequences").
			Options("OR IGNORE").
			Columns("kind", "next_id").
			Values(string(rec.Kind), 0).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to seed sequence: %w", err)
		}

		id, err := s.next(ctx, tx, "sequences", "next_id", squirrel.Eq{"kind": string(rec.Kind)})
		if err != nil {
			return err
		}
		version, err := s.nextVersion(ctx, tx)
		if err != nil {
			return err
		}

		now := s.timeFunc()
		created = rec.Clone()
		created.ID = id
		created.Version = version
		created.CreatedAt = now
		created.UpdatedAt = now
		if created.Date != nil {
			d := types.TruncateDay(*created.Date)
			created.Date = &d
		}

		query, args, err = s.sqlBuilder.buildInsert(recordsTable, recordColumns, recordValues(created))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}
	return created, nil
}

// Update implements remote.Service
func (s *Store) Update(ctx context.Context, kind types.Kind, id int64, patch types.Patch) (types.Record, error) {
	if err := validation.ValidatePatch(kind, patch); err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", remote.ErrInvalidRecord, err)
	}

	var updated types.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.get(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		version, err := s.nextVersion(ctx, tx)
		if err != nil {
			return err
		}

		patch.Version = version
		patch.UpdatedAt = s.timeFunc()
		updated = patch.Apply(current)

		// identity and creation time never change
		values := recordValues(updated)
		columns := append(recordColumns[2:9:9], "updated_at")
		query, args, err := s.sqlBuilder.buildUpdateByCondition(recordsTable,
			columns, append(values[2:9:9], values[10]), squirrel.Eq{"kind": string(kind), "id": id})
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}
	return updated, nil
}

// Delete implements remote.Service
func (s *Store) Delete(ctx context.Context, kind types.Kind, id int64) (int64, error) {
	var version int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.sqlBuilder.buildDelete(recordsTable, squirrel.Eq{"kind": string(kind), "id": id})
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %d", remote.ErrNotFound, kind, id)
		}
		version, err = s.nextVersion(ctx, tx)
		return err
	})
	return version, err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) get(ctx context.Context, q queryer, kind types.Kind, id int64) (types.Record, error) {
	query, args, err := s.sqlBuilder.buildSelectRecord(kind, id)
	if err != nil {
		return types.Record{}, err
	}
	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("%w: %s %d", remote.ErrNotFound, kind, id)
	}
	return rec, err
}

func (s *Store) candidates(ctx context.Context, entity types.EntityType, filters types.Filters) ([]types.Record, error) {
	query, args, err := s.sqlBuilder.buildSelectCandidates(entity, filters.Normalize())
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) nextVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	return s.next(ctx, tx, "counters", "seq", squirrel.Eq{"name": "last_version"})
}

// next increments a counter column and returns its new value
func (s *Store) next(ctx context.Context, tx *sql.Tx, table, column string, condition squirrel.Eq) (int64, error) {
	query, args, err := s.sqlBuilder.buildIncrement(table, column, condition)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to advance %s.%s: %w", table, column, err)
	}

	query, args, err = s.sqlBuilder.sq.Select(column).From(table).Where(condition).ToSql()
	if err != nil {
		return 0, err
	}
	var value int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}
	return value, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (types.Record, error) {
	var (
		rec                  types.Record
		kind                 string
		total                sql.NullFloat64
		date                 sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&kind, &rec.ID, &rec.Number, &rec.Counterparty, &rec.Tag, &rec.Notes,
		&total, &date, &rec.Version, &createdAt, &updatedAt)
	if err != nil {
		return types.Record{}, err
	}

	rec.Kind = types.Kind(kind)
	if total.Valid {
		rec.Total = types.Float(total.Float64)
	}
	if date.Valid && date.String != "" {
		d, err := types.ParseDay(date.String)
		if err != nil {
			return types.Record{}, fmt.Errorf("invalid date %q for %s %d: %w", date.String, kind, rec.ID, err)
		}
		rec.Date = d
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return types.Record{}, fmt.Errorf("invalid created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return types.Record{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	return rec, nil
}

// recordValues returns the column values of rec in recordColumns order
func recordValues(rec types.Record) []interface{} {
	var total, date interface{}
	if rec.Total != nil {
		total = *rec.Total
	}
	if rec.Date != nil {
		date = formatDay(*rec.Date)
	}
	return []interface{}{
		string(rec.Kind), rec.ID, rec.Number, rec.Counterparty, rec.Tag, rec.Notes,
		total, date, rec.Version,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func formatDay(t time.Time) string {
	return t.UTC().Format(types.DayLayout)
}
