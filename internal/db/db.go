// Package db owns the SQLite schema: connection setup and the ordered,
// embedded migrations applied on every open.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is the database location used when nothing is configured.
var DefaultPath = filepath.Join("data", "KHAL.sqlite")

// Open opens the database at path, creating the file and its directory if
// needed, and applies pending migrations. The returned handle holds a single
// connection; callers close it when their operation completes.
//
// The default rollback journal is kept (no WAL) so that committed writes
// land in the main file and move its modification time.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	conn, _, err := OpenWithMigrations(ctx, path)
	return conn, err
}

// OpenWithMigrations is Open that also reports the migrations it applied.
func OpenWithMigrations(ctx context.Context, path string) (*sql.DB, []string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn(path, "rwc"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	applied, err := RunMigrations(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return conn, applied, nil
}

// OpenReadOnly opens an existing database without creating or migrating it.
func OpenReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(path, "ro"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

func dsn(path, mode string) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}
