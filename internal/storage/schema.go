package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the version written to schema_metadata by CreateSchema.
const SchemaVersion = "1"

// DefaultResultsTable is the table ICT result records are inserted into.
const DefaultResultsTable = "ict_results"

// resultsTableDDL keeps the column order of extract.Record.Values, since
// inserts are positional.
const resultsTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	product_name TEXT NOT NULL,
	part_number  TEXT NOT NULL,
	start_time   DATETIME NOT NULL,
	end_time     DATETIME NOT NULL,
	passed       TEXT NOT NULL CHECK (passed IN ('0', '1'))
)`

const createIngestEventsTable = `
CREATE TABLE IF NOT EXISTS ingest_events (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	sha256      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
)`

const createSchemaMetadataTable = `
CREATE TABLE IF NOT EXISTS schema_metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_ingest_events_created_at ON ingest_events(created_at)",
	"CREATE INDEX IF NOT EXISTS idx_ingest_events_path ON ingest_events(path)",
}

// CreateSchema creates the results table, the ingest audit table and the
// metadata table in one transaction. It is safe to call on an existing
// database.
func CreateSchema(db *sql.DB, resultsTable string) error {
	if err := ValidateIdentifier(resultsTable); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{resultsTable, fmt.Sprintf(resultsTableDDL, quoteIdent(resultsTable))},
		{"ingest_events", createIngestEventsTable},
		{"schema_metadata", createSchemaMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	bootstrap := `
		INSERT INTO schema_metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('results_table', ?, ?)
		ON CONFLICT(key) DO NOTHING
	`
	if _, err := tx.Exec(bootstrap, SchemaVersion, now, resultsTable, now); err != nil {
		return fmt.Errorf("failed to bootstrap schema_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the stored schema version, or "0" for a database
// without schema_metadata.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check schema_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM schema_metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in schema_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}
