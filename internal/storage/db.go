// Package storage is the SQLite sink for ICT result records.
//
// Inserts are positional: the caller supplies values in the table's column
// order and the sink binds one placeholder per column. The sink does not
// deduplicate; every Insert call appends a row.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrUnknownTable indicates the table does not exist.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn indicates the column does not exist in the table.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrColumnCountMismatch indicates a positional insert with the wrong
	// number of values.
	ErrColumnCountMismatch = errors.New("value count does not match column count")

	// ErrInvalidIdentifier indicates a table or column name that cannot be
	// used as a SQL identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DB wraps a SQLite connection used as the result sink.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and ensures the schema
// exists. Use ":memory:" for a throwaway database.
func Open(path, resultsTable string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps an in-memory
	// database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := CreateSchema(db, resultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// NewFromDB wraps an already configured connection. The caller keeps
// ownership of db.
func NewFromDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// Path returns the database path given to Open.
func (d *DB) Path() string {
	return d.path
}

// SQL exposes the underlying connection.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close closes the connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks that the database answers.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ColumnNames returns the columns of table in declaration order.
func (d *DB) ColumnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return columns, nil
}

// TableNames returns the user tables of the database.
func (d *DB) TableNames(ctx context.Context) ([]string, error) {
	rows, err := sq.Select("name").
		From("sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name").
		RunWith(d.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Insert appends one row to table. values must be in the table's column
// order and match its column count. NaN floats are stored as NULL.
// Safe for concurrent use.
func (d *DB) Insert(ctx context.Context, table string, values []any) error {
	columns, err := d.ColumnNames(ctx, table)
	if err != nil {
		return err
	}
	if len(values) != len(columns) {
		return fmt.Errorf("%w: %s has %d columns, got %d values", ErrColumnCountMismatch, table, len(columns), len(values))
	}

	_, err = sq.Insert(quoteIdent(table)).
		Values(normalizeValues(values)...).
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// Rows returns the column names and rows of table matching where (nil for
// all rows), newest first by rowid. limit 0 means no limit.
func (d *DB) Rows(ctx context.Context, table string, where sq.Sqlizer, limit uint64) ([]string, [][]any, error) {
	columns, err := d.ColumnNames(ctx, table)
	if err != nil {
		return nil, nil, err
	}

	query := sq.Select(quoteIdents(columns)...).
		From(quoteIdent(table)).
		OrderBy("rowid DESC")
	if where != nil {
		query = query.Where(where)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	rows, err := query.RunWith(d.db).QueryContext(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		row := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return columns, out, nil
}

// ColumnValues returns one column of table for rows matching where.
func (d *DB) ColumnValues(ctx context.Context, table, column string, where sq.Sqlizer) ([]any, error) {
	if err := d.requireColumn(ctx, table, column); err != nil {
		return nil, err
	}

	query := sq.Select(quoteIdent(column)).From(quoteIdent(table)).OrderBy("rowid")
	if where != nil {
		query = query.Where(where)
	}
	rows, err := query.RunWith(d.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s.%s: %w", table, column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// RowExists reports whether any row of table has column equal to value.
func (d *DB) RowExists(ctx context.Context, table, column string, value any) (bool, error) {
	if err := d.requireColumn(ctx, table, column); err != nil {
		return false, err
	}

	var count int
	err := sq.Select("COUNT(*)").
		From(quoteIdent(table)).
		Where(sq.Eq{quoteIdent(column): value}).
		RunWith(d.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// Filter builds an equality WHERE clause over table's columns. Every key
// must be a live column; values are bound. An empty filter returns nil.
func (d *DB) Filter(ctx context.Context, table string, equals map[string]any) (sq.Sqlizer, error) {
	if len(equals) == 0 {
		return nil, nil
	}
	eq := sq.Eq{}
	for column, value := range equals {
		if err := d.requireColumn(ctx, table, column); err != nil {
			return nil, err
		}
		eq[quoteIdent(column)] = value
	}
	return eq, nil
}

func (d *DB) requireColumn(ctx context.Context, table, column string) error {
	columns, err := d.ColumnNames(ctx, table)
	if err != nil {
		return err
	}
	for _, c := range columns {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
}

// ValidateIdentifier checks that name is a plain SQL identifier.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}

func normalizeValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		switch f := v.(type) {
		case float64:
			if math.IsNaN(f) {
				out[i] = nil
				continue
			}
		case float32:
			if math.IsNaN(float64(f)) {
				out[i] = nil
				continue
			}
		}
		out[i] = v
	}
	return out
}
