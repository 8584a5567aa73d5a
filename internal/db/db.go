// Package db opens the sqlite database and applies every package's schema.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"fleetwear/internal/logging"
	"fleetwear/internal/notify"
	"fleetwear/internal/wearout"
)

// Open opens (creating if needed) the database at path and migrates it.
// path ":memory:" yields a single-connection in-memory database.
func Open(path string) (*sql.DB, error) {
	if err := ensureDirectory(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enableWAL(db)
	if err = Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the wear history and notification schemas.
func Migrate(db *sql.DB) error {
	if err := wearout.Migrate(db); err != nil {
		return err
	}
	return notify.Migrate(db)
}

func ensureDirectory(path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return nil
}

func enableWAL(db *sql.DB) {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		lg := logging.Component("db")
		lg.Warn().Err(err).Msg("could not enable WAL mode")
	}
}
