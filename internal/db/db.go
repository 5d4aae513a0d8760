package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	return open("sqlite", dsn, Pool{MaxOpen: maxOpen, MaxIdle: maxIdle, MaxLifetime: maxLifetime})
}

// Open connects to the configured driver. For sqlite the DSN is ignored and
// path is used; mysql and pgx take the DSN verbatim.
func Open(driver, dsn, path string, pool Pool) (*sql.DB, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(path, pool.MaxOpen, pool.MaxIdle, pool.MaxLifetime)
	case "mysql", "pgx":
		return open(driver, dsn, pool)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func open(driver, dsn string, pool Pool) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
