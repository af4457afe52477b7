package repository

import (
	"context"
	"log/slog"
)

const (
	recordsTable = "statement_records"
	itemsTable   = "statement_line_items"
	runsTable    = "pipeline_runs"
)

// Times are stored as RFC 3339 text and decimals as text so the same DDL
// serves postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS statement_records (
		id             TEXT PRIMARY KEY,
		document_key   TEXT NOT NULL,
		statement_type TEXT NOT NULL,
		period_key     TEXT NOT NULL,
		period_start   TEXT,
		period_end     TEXT,
		period_label   TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		confidence     DOUBLE PRECISION NOT NULL,
		scale          BIGINT NOT NULL,
		currency       TEXT NOT NULL,
		findings_json  TEXT NOT NULL,
		run_id         TEXT NOT NULL,
		processed_at   TEXT NOT NULL,
		UNIQUE (document_key, statement_type, period_key)
	)`,
	`CREATE INDEX IF NOT EXISTS statement_records_document_key_idx ON statement_records (document_key)`,
	`CREATE TABLE IF NOT EXISTS statement_line_items (
		record_id       TEXT NOT NULL REFERENCES statement_records (id) ON DELETE CASCADE,
		ordinal         INTEGER NOT NULL,
		taxonomy_key    TEXT,
		raw_label       TEXT NOT NULL,
		value           TEXT,
		raw_value       TEXT NOT NULL DEFAULT '',
		has_value       BOOLEAN NOT NULL,
		currency        TEXT NOT NULL,
		unit_multiplier BIGINT NOT NULL,
		page            INTEGER NOT NULL,
		sheet           TEXT NOT NULL DEFAULT '',
		seq             INTEGER NOT NULL,
		row_idx         INTEGER NOT NULL,
		col_idx         INTEGER NOT NULL,
		PRIMARY KEY (record_id, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_key         TEXT PRIMARY KEY,
		run_id          TEXT NOT NULL,
		content_type    TEXT NOT NULL DEFAULT '',
		state           TEXT NOT NULL,
		blocks_json     TEXT,
		blocks_at       TEXT,
		detections_json TEXT,
		attempts        INTEGER NOT NULL DEFAULT 0,
		failure_json    TEXT,
		updated_at      TEXT NOT NULL
	)`,
}

// EnsureSchema creates the pipeline tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range schema {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			logger.Error("schema.apply.failed", "error", err)
			return err
		}
	}
	logger.Info("schema.apply.ok", "dialect", db.Dialect, "statements", len(schema))
	return nil
}
