// Package store is the tenant-scoped persistence layer of prospect.
//
// Each tenant owns one SQLite file, <root>/<tenant_id>.db. A Store holds
// only the path: every method opens its own handle, runs one statement or
// one transaction, and closes the handle before returning.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/prospect/dbopen"
	"github.com/hazyhaar/prospect/horosafe"
)

// Store is one tenant's isolated data store.
type Store struct {
	tenantID string
	path     string
	logger   *slog.Logger
	now      func() time.Time
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open returns the store of tenantID under root, creating the directory,
// the file and the schema when absent. Safe to call on every access.
func Open(ctx context.Context, root, tenantID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	registerFunctions()

	path, err := horosafe.TenantFile(root, tenantID, ".db")
	if err != nil {
		return nil, unavailable("tenant path", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, unavailable("mkdir", err)
	}

	db, err := dbopen.Open(path,
		dbopen.WithMaxOpenConns(1),
		dbopen.WithSchema(Schema),
		dbopen.WithSchemaFunc(migrate),
	)
	if err != nil {
		return nil, unavailable("open", err)
	}
	if err := db.Close(); err != nil {
		return nil, unavailable("close", err)
	}

	return &Store{
		tenantID: tenantID,
		path:     path,
		logger:   logger.With("tenant_id", tenantID),
		now:      time.Now,
	}, nil
}

// TenantID returns the tenant this store is bound to.
func (s *Store) TenantID() string { return s.tenantID }

// Path returns the tenant file path.
func (s *Store) Path() string { return s.path }

// withDB acquires a handle for the duration of fn and always releases it.
func (s *Store) withDB(ctx context.Context, op string, fn func(*sql.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := dbopen.Open(s.path, dbopen.WithMaxOpenConns(1), dbopen.WithoutPing())
	if err != nil {
		return unavailable(op, err)
	}
	defer db.Close()
	return fn(db)
}

// mutate runs a boolean-returning write. Statement failures are logged and
// reported as false; only a failed acquisition is an error.
func (s *Store) mutate(ctx context.Context, op string, fn func(*sql.DB) error) (bool, error) {
	var stmtErr error
	err := s.withDB(ctx, op, func(db *sql.DB) error {
		stmtErr = fn(db)
		return nil
	})
	if err != nil {
		return false, err
	}
	if stmtErr != nil {
		s.logger.Warn("store: "+op+" failed", "error", stmtErr)
		return false, nil
	}
	return true, nil
}

// insert runs an INSERT and returns the new row id.
func (s *Store) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	var id int64
	err := s.withDB(ctx, op, func(db *sql.DB) error {
		res, err := dbopen.Exec(ctx, db, query, args...)
		if err != nil {
			if isForeignKeyErr(err) {
				return ErrUnknownLead
			}
			return unavailable(op, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return unavailable(op, err)
		}
		return nil
	})
	return id, err
}

func (s *Store) nowMs() int64 { return s.now().UnixMilli() }

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

func wrapQuery(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
