package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"bizportal/internal/store"
)

func TestApplyMigrationFileAddsCompatibilityColumnsForLegacySchema(t *testing.T) {
	sqdb, err := OpenSQLite(filepath.Join(t.TempDir(), "legacy.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })

	legacySchema := `
CREATE TABLE accounts (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'staff',
  status TEXT NOT NULL DEFAULT 'active',
  failed_attempts INTEGER NOT NULL DEFAULT 0,
  locked_until TIMESTAMP,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE submissions (
  id TEXT PRIMARY KEY,
  questionnaire_id TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  client_ip TEXT,
  user_agent TEXT,
  created_at TIMESTAMP NOT NULL,
  notified_at TIMESTAMP
);
`
	if _, err := sqdb.Exec(legacySchema); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}

	migration := filepath.Join("..", "..", "migrations", "001_init.sql")
	if err := ApplyMigrationFile(sqdb, migration); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	// Second run must be a no-op.
	if err := ApplyMigrationFile(sqdb, migration); err != nil {
		t.Fatalf("re-apply migration: %v", err)
	}

	if !hasColumn(t, sqdb, "accounts", "last_login_at") {
		t.Fatalf("expected accounts.last_login_at to exist after migration")
	}
	if !hasColumn(t, sqdb, "submissions", "notify_error") {
		t.Fatalf("expected submissions.notify_error to exist after migration")
	}

	now := time.Now().UTC()
	if _, err := sqdb.Exec(
		`INSERT INTO accounts(id,username,email,password_hash,role,status,failed_attempts,created_at) VALUES(?,?,?,?,?,?,?,?)`,
		"a1", "legacy", "legacy@example.com", "legacy_hash", "admin", "active", 0, now,
	); err != nil {
		t.Fatalf("insert legacy account: %v", err)
	}

	st := store.New(sqdb, "sqlite")
	a, err := st.GetActiveAccountByHandle(context.Background(), "legacy@example.com")
	if err != nil {
		t.Fatalf("GetActiveAccountByHandle should work after compatibility migration, got: %v", err)
	}
	if a.LastLoginAt != nil {
		t.Fatalf("expected nil last_login_at for legacy row, got %v", a.LastLoginAt)
	}
	perms, err := st.GrantedPermissions(context.Background(), "manager")
	if err != nil {
		t.Fatalf("granted permissions: %v", err)
	}
	if len(perms) != 4 {
		t.Fatalf("expected seeded manager permissions, got %v", perms)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "", "", Pool{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Minute}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestMigrationPathFor(t *testing.T) {
	base := filepath.Join("migrations", "001_init.sql")
	cases := map[string]string{
		"":       base,
		"sqlite": base,
		"pgx":    filepath.Join("migrations", "001_init.pgx.sql"),
		"MySQL":  filepath.Join("migrations", "001_init.mysql.sql"),
	}
	for driver, want := range cases {
		if got := MigrationPathFor(base, driver); got != want {
			t.Fatalf("MigrationPathFor(%q) = %q, want %q", driver, got, want)
		}
	}
}

var createTableRe = regexp.MustCompile(`(?i)CREATE TABLE IF NOT EXISTS (\w+)`)

// The postgres and mysql schemas cannot be executed here, so they are checked
// against the sqlite one for coverage and for sqlite-only syntax.
func TestDialectMigrationsMatchSQLiteSchema(t *testing.T) {
	base := filepath.Join("..", "..", "migrations", "001_init.sql")
	want := tablesIn(t, base)
	for _, driver := range []string{"pgx", "mysql"} {
		path := MigrationPathFor(base, driver)
		if got := tablesIn(t, path); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s tables = %v, want %v", path, got, want)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		sqlText := strings.ToUpper(string(b))
		for _, bad := range []string{"INSERT OR IGNORE", "TEXT PRIMARY KEY", "TEXT NOT NULL UNIQUE", "TEXT UNIQUE"} {
			if strings.Contains(sqlText, bad) {
				t.Fatalf("%s contains sqlite-only %q", path, bad)
			}
		}
		if !strings.Contains(sqlText, "ROLE_PERMISSIONS") || !strings.Contains(sqlText, "'MANAGER', 'QUESTIONNAIRE.MANAGE', 1") {
			t.Fatalf("%s does not seed role grants", path)
		}
	}
}

func tablesIn(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []string
	for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
		out = append(out, strings.ToLower(m[1]))
	}
	sort.Strings(out)
	return out
}

func hasColumn(t *testing.T, sqdb *sql.DB, tableName, colName string) bool {
	t.Helper()
	rows, err := sqdb.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		t.Fatalf("table_info %s: %v", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("scan table_info %s: %v", tableName, err)
		}
		if name == colName {
			return true
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate table_info %s: %v", tableName, err)
	}
	return false
}
