package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MigrationPathFor picks the schema file for driver. The configured path is
// the sqlite file; other drivers use a sibling named after the driver, so
// migrations/001_init.sql becomes migrations/001_init.pgx.sql.
func MigrationPathFor(path, driver string) string {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + strings.ToLower(driver) + ext
}

// ApplyMigrationFile executes the SQL file as one batch. Statements must be
// idempotent since it runs on every start. MySQL needs multiStatements=true
// in the DSN for this to work.
func ApplyMigrationFile(db *sql.DB, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("apply migration: %w", err)
	}

	// Columns added after the first deployments.
	for _, stmt := range []string{
		`ALTER TABLE accounts ADD COLUMN last_login_at TIMESTAMP`,
		`ALTER TABLE submissions ADD COLUMN notify_error TEXT`,
	} {
		if _, err := db.Exec(stmt); err != nil && !isDuplicateColumnErr(err) {
			return fmt.Errorf("apply compatibility migration %q: %w", stmt, err)
		}
	}
	return nil
}

func isDuplicateColumnErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
