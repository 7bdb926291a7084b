package shared

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// OpenDatabase opens, configures and migrates the database described by conf.
//
// The parent directory of a file database is created when missing.
func OpenDatabase(ctx context.Context, conf DatabaseConfig) (*sql.DB, error) {
	if conf.Path != ":memory:" {
		if dir := filepath.Dir(conf.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := NewDatabase(conf.Path)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ":memory:" databases coherent and avoids SQLITE_BUSY on writes.
	open, idle := conf.MaxOpenConns, conf.MaxIdleConns
	if open <= 0 || conf.Path == ":memory:" {
		open, idle = 1, 1
	}
	ConfigureDatabase(db, open, idle)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
