package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates an in-memory database with the full schema and the
// default results table. The connection is closed by t.Cleanup.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    db := storage.NewTestDB(t)
//	    // ... test code ...
//	}
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := Open(":memory:", DefaultResultsTable)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

// NewTestDBFile creates a file-backed database in t.TempDir(). Use it when a
// test needs to reopen the database or inspect it from a second connection.
func NewTestDBFile(t testing.TB) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath, DefaultResultsTable)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}
