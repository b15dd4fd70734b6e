// Package repository is the run store: an embedded SQLite database recording
// every document seen and every extraction job run against it.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	source_path   TEXT NOT NULL,
	rel_path      TEXT NOT NULL,
	file_ext      TEXT NOT NULL,
	content_hash  TEXT NOT NULL UNIQUE,
	size_bytes    INTEGER NOT NULL,
	first_seen_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS extract_jobs (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	status         TEXT NOT NULL,
	format         TEXT NOT NULL,
	model_name     TEXT,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP,
	error_message  TEXT,
	extracted_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_document
	ON extract_jobs(document_id, status, started_at);
`

// Open opens (creating if needed) the run store at path. ":memory:" yields an
// ephemeral store for tests and dry runs.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("store.open", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY in the sequential pipeline.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return db, nil
}

// Close closes the store gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("store.close_failed", "error", err)
		return
	}
	logger.Debug("store.closed")
}
