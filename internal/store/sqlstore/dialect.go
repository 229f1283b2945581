package sqlstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	// Name is the store driver name used in configuration and as the
	// migrations subdirectory.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// DSN turns a configured path or URL into a driver DSN.
	DSN(target string) (string, error)
	// Configure applies pool and session settings after opening.
	Configure(db *sqlx.DB, target string) error
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unknown driver %q", name)
	}
}

func configurePool(db *sqlx.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

// --- SQLite ---

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite3" }

// DSN ensures the parent directory exists for file paths like
// ./data/hangman.db and turns on busy timeout, WAL and foreign keys.
func (sqliteDialect) DSN(path string) (string, error) {
	if isMemoryPath(path) {
		return path + "?_foreign_keys=on", nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", nil
}

func (sqliteDialect) Configure(db *sqlx.DB, path string) error {
	if isMemoryPath(path) {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
		return nil
	}
	configurePool(db)
	return nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// --- PostgreSQL ---

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) DSN(url string) (string, error) {
	if url == "" {
		return "", errors.New("sqlstore: postgres needs DATABASE_URL")
	}
	return url, nil
}

func (postgresDialect) Configure(db *sqlx.DB, _ string) error {
	configurePool(db)
	return nil
}

// --- MySQL ---

type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

// DSN reports matched rather than changed rows, so an UPDATE that rewrites
// identical values still counts as finding the record.
func (mysqlDialect) DSN(url string) (string, error) {
	if url == "" {
		return "", errors.New("sqlstore: mysql needs DATABASE_URL")
	}
	cfg, err := mysql.ParseDSN(url)
	if err != nil {
		return "", fmt.Errorf("sqlstore: parse mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func (mysqlDialect) Configure(db *sqlx.DB, _ string) error {
	configurePool(db)
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		return err
	}
	return nil
}

// isUniqueViolation recognizes unique constraint errors from every driver.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
