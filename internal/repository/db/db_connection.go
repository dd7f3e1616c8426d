package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// one writer: every poller appends through the same connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaDevices = `
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    address TEXT NOT NULL,
    interval_s INTEGER NOT NULL,
    track_consumables BOOLEAN NOT NULL,
    control TEXT NOT NULL,
    manufacturer TEXT,
    model TEXT,
    serial_number TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaDeviceState = `
CREATE TABLE IF NOT EXISTS device_state (
    device_id TEXT PRIMARY KEY,
    reachable BOOLEAN NOT NULL,
    active BOOLEAN NOT NULL,
    consumables TEXT,
    last_activation_s INTEGER NOT NULL DEFAULT 0,
    activation_count INTEGER NOT NULL DEFAULT 0,
    reset_epoch TIMESTAMP,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaHistory = `
CREATE TABLE IF NOT EXISTS history_entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    device_id TEXT NOT NULL,
    occurred_at TIMESTAMP NOT NULL,
    status INTEGER NOT NULL,
    kind TEXT NOT NULL
);
`

const schemaHistoryIndex = `
CREATE INDEX IF NOT EXISTS idx_history_device_time ON history_entries (device_id, occurred_at);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaDevices,
		schemaDeviceState,
		schemaHistory,
		schemaHistoryIndex,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
