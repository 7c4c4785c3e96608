// Package dbopen opens SQLite databases with the pragmas every prospect
// tenant file is expected to carry. The pragmas travel in the DSN, so the
// driver applies them to every pooled connection, busy_timeout first.
//
// Default pragmas:
//
//	busy_timeout = 10000
//	foreign_keys = ON
//	journal_mode = WAL
//	synchronous  = NORMAL
//
// Usage:
//
//	db, err := dbopen.Open("data/acme.db", dbopen.WithMkdirAll())
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	driver      = "sqlite" // modernc.org/sqlite
	busyTimeout = 10_000
)

type config struct {
	foreignKeys bool
	mkdirAll    bool
	schemas     []string
	schemaFuncs []func(*sql.DB) error
	maxConns    int
	ping        bool
}

func defaults() config {
	return config{foreignKeys: true, ping: true}
}

// Option customises Open behaviour.
type Option func(*config)

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues inline SQL to execute after pragmas are applied.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// WithSchemaFunc queues a migration function run after the inline schemas.
// Used for idempotent column migrations that need to inspect the table first.
func WithSchemaFunc(fn func(*sql.DB) error) Option {
	return func(c *config) { c.schemaFuncs = append(c.schemaFuncs, fn) }
}

// WithMaxOpenConns caps the pool size.
func WithMaxOpenConns(n int) Option { return func(c *config) { c.maxConns = n } }

// WithoutPing skips the db.Ping() verification after opening.
func WithoutPing() Option { return func(c *config) { c.ping = false } }

// WithoutForeignKeys disables PRAGMA foreign_keys.
func WithoutForeignKeys() Option { return func(c *config) { c.foreignKeys = false } }

// Open opens an SQLite database at path with the default pragmas.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn(path, &cfg))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}
	if cfg.maxConns > 0 {
		db.SetMaxOpenConns(cfg.maxConns)
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}
	for _, fn := range cfg.schemaFuncs {
		if err := fn(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: migrate: %w", err)
		}
	}

	if cfg.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: ping: %w", err)
		}
	}

	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
// MaxOpenConns is pinned to 1 because every connection to ":memory:" is a
// separate database. The database is closed through t.Cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", append([]Option{WithMaxOpenConns(1)}, opts...)...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// dsn appends the pragma query to path. The driver runs busy_timeout first
// on each new connection, so concurrent openers of a fresh file wait on the
// WAL switch instead of failing with SQLITE_BUSY.
func dsn(path string, cfg *config) string {
	fk := 1
	if !cfg.foreignKeys {
		fk = 0
	}
	pragmas := []string{
		fmt.Sprintf("busy_timeout(%d)", busyTimeout),
		fmt.Sprintf("foreign_keys(%d)", fk),
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
	}
	return path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}
