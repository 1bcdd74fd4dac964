// Package sqlite_test contains integration tests for the SQLite store.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for
// repository tests. setupTestDB uses db.GetSchemaSQL(), the concatenation of
// the shipped migrations, so test schemas cannot drift from production.
// Do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/khal/internal/db"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// every connection to :memory: is a separate database
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedDomain inserts a domain and returns its ID.
func seedDomain(t *testing.T, db *sql.DB, id string) string {
	t.Helper()
	if id == "" {
		id = "general"
	}
	_, err := db.Exec("INSERT INTO domains (id, name) VALUES (?, ?)", id, id)
	if err != nil {
		t.Fatalf("failed to seed domain: %v", err)
	}
	return id
}

// seedCraft inserts a craft and returns its ID.
func seedCraft(t *testing.T, db *sql.DB, id, name string) string {
	t.Helper()
	if id == "" {
		id = "craft-1"
	}
	if name == "" {
		name = "Test Craft"
	}
	_, err := db.Exec("INSERT INTO crafts (id, name) VALUES (?, ?)", id, name)
	if err != nil {
		t.Fatalf("failed to seed craft: %v", err)
	}
	return id
}
