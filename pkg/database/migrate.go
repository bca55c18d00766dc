package database

import (
	"context"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the embedded schema for the connection's dialect. Every
// statement is idempotent, so it runs on each start.
func Migrate(ctx context.Context, db *DB) error {
	name := "schema/sqlite.sql"
	if db.Dialect == DriverPostgres {
		name = "schema/postgres.sql"
	}
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	// no placeholders, so bypass Rebind
	if _, err := db.DB.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
