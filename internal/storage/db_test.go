package storage

// Test Plan for SQLite sink:
// - Open creates results, ingest_events and schema_metadata tables
// - Open is idempotent on an existing file database
// - CreateSchema rejects invalid results table names
// - GetSchemaVersion returns "0" for an empty database, "1" after CreateSchema
// - ColumnNames returns declaration order; unknown table is ErrUnknownTable
// - Insert stores a positional row; wrong value count is ErrColumnCountMismatch
// - Insert converts NaN to NULL
// - Concurrent inserts all land
// - Rows/ColumnValues/RowExists filter with squirrel predicates
// - ColumnValues/RowExists/Filter reject unknown columns
// - RecordEvent fills id and time; Events filters by status

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	startTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	endTime   = time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)
)

func resultValues(product, passed string) []any {
	return []any{product, "PN001", startTime, endTime, passed}
}

func TestOpen_CreatesSchema(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	tables, err := db.TableNames(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{DefaultResultsTable, "ingest_events", "schema_metadata"}, tables)

	version, err := GetSchemaVersion(db.SQL())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestOpen_ReopenExistingFile(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/results.db"
	db, err := Open(path, DefaultResultsTable)
	require.NoError(t, err)
	require.NoError(t, db.Insert(context.Background(), DefaultResultsTable, resultValues("ProdA", "1")))
	require.NoError(t, db.Close())

	db, err = Open(path, DefaultResultsTable)
	require.NoError(t, err)
	defer db.Close()

	exists, err := db.RowExists(context.Background(), DefaultResultsTable, "product_name", "ProdA")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, db.Path())
}

func TestCreateSchema_InvalidTableName(t *testing.T) {
	t.Parallel()

	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer raw.Close()

	err = CreateSchema(raw, "results; DROP TABLE x")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestGetSchemaVersion_EmptyDatabase(t *testing.T) {
	t.Parallel()

	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer raw.Close()
	raw.SetMaxOpenConns(1)

	version, err := GetSchemaVersion(raw)
	require.NoError(t, err)
	assert.Equal(t, "0", version)

	require.NoError(t, CreateSchema(raw, "custom_results"))
	version, err = GetSchemaVersion(raw)
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	_, err = NewFromDB(raw).ColumnNames(context.Background(), "custom_results")
	assert.NoError(t, err)
}

func TestColumnNames(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	columns, err := db.ColumnNames(ctx, DefaultResultsTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"product_name", "part_number", "start_time", "end_time", "passed"}, columns)

	_, err = db.ColumnNames(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestInsert_Positional(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "1")))

	columns, rows, err := db.Rows(ctx, DefaultResultsTable, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, columns, 5)

	row := rows[0]
	assert.Equal(t, "ProdA", row[0])
	assert.Equal(t, "PN001", row[1])
	start, ok := row[2].(time.Time)
	require.True(t, ok, "start_time should scan as time.Time, got %T", row[2])
	assert.True(t, start.Equal(startTime))
	end, ok := row[3].(time.Time)
	require.True(t, ok)
	assert.True(t, end.Equal(endTime))
	assert.Equal(t, "1", row[4])
}

func TestInsert_Errors(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	err := db.Insert(ctx, DefaultResultsTable, []any{"ProdA", "PN001"})
	assert.ErrorIs(t, err, ErrColumnCountMismatch)

	err = db.Insert(ctx, "missing", resultValues("ProdA", "1"))
	assert.ErrorIs(t, err, ErrUnknownTable)

	// The CHECK constraint on passed rejects anything but "0"/"1".
	err = db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "yes"))
	assert.Error(t, err)
}

func TestInsert_NaNBecomesNull(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.SQL().Exec("CREATE TABLE measurements (name TEXT, value REAL)")
	require.NoError(t, err)
	require.NoError(t, db.Insert(ctx, "measurements", []any{"r201", math.NaN()}))

	values, err := db.ColumnValues(ctx, "measurements", "value", nil)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Nil(t, values[0])
}

func TestInsert_Concurrent(t *testing.T) {
	t.Parallel()

	db := NewTestDBFile(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- db.Insert(ctx, DefaultResultsTable, resultValues(fmt.Sprintf("Prod%d", i), "1"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	values, err := db.ColumnValues(ctx, DefaultResultsTable, "product_name", nil)
	require.NoError(t, err)
	assert.Len(t, values, workers)
}

func TestInsert_NoDeduplication(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "1")))
	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "1")))

	_, rows, err := db.Rows(ctx, DefaultResultsTable, nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRows_WhereAndLimit(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "1")))
	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdB", "0")))
	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdC", "0")))

	_, rows, err := db.Rows(ctx, DefaultResultsTable, sq.Eq{"passed": "0"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ProdC", rows[0][0], "newest first")

	_, rows, err = db.Rows(ctx, DefaultResultsTable, nil, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "1")))
	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdB", "0")))

	where, err := db.Filter(ctx, DefaultResultsTable, map[string]any{"product_name": "ProdB", "passed": "0"})
	require.NoError(t, err)
	_, rows, err := db.Rows(ctx, DefaultResultsTable, where, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ProdB", rows[0][0])

	where, err = db.Filter(ctx, DefaultResultsTable, nil)
	require.NoError(t, err)
	assert.Nil(t, where)

	_, err = db.Filter(ctx, DefaultResultsTable, map[string]any{"passed = 1 OR 1": "x"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestColumnValuesAndRowExists(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdA", "1")))
	require.NoError(t, db.Insert(ctx, DefaultResultsTable, resultValues("ProdB", "0")))

	values, err := db.ColumnValues(ctx, DefaultResultsTable, "product_name", sq.Eq{"passed": "1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"ProdA"}, values)

	exists, err := db.RowExists(ctx, DefaultResultsTable, "product_name", "ProdB")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.RowExists(ctx, DefaultResultsTable, "product_name", "ProdZ")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = db.ColumnValues(ctx, DefaultResultsTable, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = db.RowExists(ctx, DefaultResultsTable, "nope", 1)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestPing(t *testing.T) {
	t.Parallel()

	db := NewTestDBFile(t)
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestEvents(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordEvent(ctx, IngestEvent{Path: "/logs/a.log", Status: StatusInserted, CreatedAt: base}))
	require.NoError(t, db.RecordEvent(ctx, IngestEvent{
		Path:      "/logs/b.log",
		Status:    StatusFailed,
		ErrorKind: "malformed_grammar",
		Message:   "unbalanced '}'",
		CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, db.RecordEvent(ctx, IngestEvent{Path: "/logs/c.log", Status: StatusNoData}))

	all, err := db.Events(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/logs/c.log", all[0].Path, "newest first")
	for _, ev := range all {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.CreatedAt.IsZero())
	}

	failed, err := db.Events(ctx, StatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "malformed_grammar", failed[0].ErrorKind)
	assert.True(t, failed[0].CreatedAt.Equal(base.Add(time.Minute)))

	limited, err := db.Events(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
