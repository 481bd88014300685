package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS monitors (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			monitored_item_id TEXT,
			threshold_json TEXT NOT NULL,
			inertia_ns INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS generic_events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			ts DATETIME NOT NULL,
			monitor_id TEXT,
			payload_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ongoing_events (
			id TEXT PRIMARY KEY,
			monitor_id TEXT NOT NULL UNIQUE,
			monitored_item_id TEXT,
			type TEXT NOT NULL,
			start_ts DATETIME NOT NULL,
			threshold_json TEXT NOT NULL,
			value_json TEXT NOT NULL,
			inertia_ns INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS past_events (
			id TEXT PRIMARY KEY,
			monitor_id TEXT NOT NULL,
			monitored_item_id TEXT,
			type TEXT NOT NULL,
			start_ts DATETIME NOT NULL,
			end_ts DATETIME NOT NULL,
			threshold_json TEXT NOT NULL,
			value_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS webserver_checks (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generic_events_ts ON generic_events(ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_generic_events_monitor ON generic_events(monitor_id);`,
		`CREATE INDEX IF NOT EXISTS idx_past_events_end ON past_events(end_ts DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
