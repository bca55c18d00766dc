// Package dbtest opens throwaway migrated databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"aura/pkg/database"
)

// Open returns a migrated SQLite database living in t.TempDir.
func Open(t testing.TB) *database.DB {
	t.Helper()
	cfg := database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "aura.db"),
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a bare user row so user-owned rows satisfy their foreign keys.
func SeedUser(t testing.TB, db *database.DB, id string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, 'x', CURRENT_TIMESTAMP)`,
		id, id, id+"@example.test")
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}
