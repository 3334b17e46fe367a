// Package transcript persists every message of every run to SQLite so a
// run can be replayed after the process exits.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'started',
    steps INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT ''
);`

const createTranscriptsTable = `
CREATE TABLE IF NOT EXISTS transcripts (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    step INTEGER NOT NULL DEFAULT 0,
    node TEXT NOT NULL DEFAULT '',
    agent TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    tool_calls TEXT NOT NULL DEFAULT '[]',
    tool_call_id TEXT NOT NULL DEFAULT '',
    is_error INTEGER NOT NULL DEFAULT 0,
    redacted INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`

const createSchemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// migrations is the ordered list of schema changes applied after the
// initial table creation. A migration is skipped if its version is already
// present in the schema_version table.
var migrations = []struct {
	version int
	sql     string
}{
	// v1: lookups by run
	{1, "CREATE INDEX IF NOT EXISTS idx_transcripts_run ON transcripts (run_id, seq)"},
	// v2: listing recent runs
	{2, "CREATE INDEX IF NOT EXISTS idx_runs_started ON runs (started_at)"},
}

// Open opens (creating if needed) the transcript database at path and
// brings its schema up to date. ":memory:" opens a private in-memory
// database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("transcript: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{createRunsTable, createTranscriptsTable, createSchemaVersionTable} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("transcript: create tables: %w", err)
		}
	}
	for _, m := range migrations {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = ?", m.version).Scan(&n); err != nil {
			return fmt.Errorf("transcript: read schema version: %w", err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("transcript: migration v%d: %w", m.version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("transcript: record migration v%d: %w", m.version, err)
		}
	}
	return nil
}
