// Package storage persists habitd's host state (dismissed ids, analysis
// runs) in SQLite and reads Home Assistant recorder databases for offline
// analysis. The analysis engine itself never touches storage; it receives
// dismissed ids as a plain set and returns value objects.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the habitd state database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the state database at path.
// WAL mode is enabled for concurrent reader safety.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) DSN syntax.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles concurrency better with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dismissal (
		item_id      TEXT PRIMARY KEY,
		kind         TEXT NOT NULL CHECK (kind IN ('suggestion', 'stale')),
		dismissed_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_run (
		run_id           TEXT PRIMARY KEY,
		started_ms       INTEGER NOT NULL,
		finished_ms      INTEGER NOT NULL,
		record_count     INTEGER NOT NULL,
		suggestion_count INTEGER NOT NULL,
		stale_count      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS ix_analysis_run_finished ON analysis_run (finished_ms);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// AnalysisRun records one completed analysis for the status surface.
type AnalysisRun struct {
	RunID           string
	StartedMs       int64
	FinishedMs      int64
	RecordCount     int
	SuggestionCount int
	StaleCount      int
}

// RecordRun stores a completed analysis run.
func (s *Store) RecordRun(ctx context.Context, run AnalysisRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_run (run_id, started_ms, finished_ms, record_count, suggestion_count, stale_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedMs, run.FinishedMs, run.RecordCount, run.SuggestionCount, run.StaleCount)
	if err != nil {
		return fmt.Errorf("failed to record analysis run: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished run, or nil if none exist.
func (s *Store) LastRun(ctx context.Context) (*AnalysisRun, error) {
	var run AnalysisRun
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_ms, finished_ms, record_count, suggestion_count, stale_count
		 FROM analysis_run ORDER BY finished_ms DESC LIMIT 1`).Scan(
		&run.RunID, &run.StartedMs, &run.FinishedMs,
		&run.RecordCount, &run.SuggestionCount, &run.StaleCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}
	return &run, nil
}
