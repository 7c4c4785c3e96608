package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// busyBackoff is the wait before each retry of a statement that found the
// file locked past busy_timeout.
var busyBackoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

// IsBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// extended codes. Errors that lost their driver type are matched on text.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// whileBusy runs fn and reruns it after each busyBackoff step for as long as
// it reports a lock conflict. Any other error is returned at once.
func whileBusy[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	v, err := fn()
	for _, d := range busyBackoff {
		if !IsBusy(err) {
			return v, err
		}
		if werr := sleepCtx(ctx, d); werr != nil {
			var zero T
			return zero, fmt.Errorf("dbopen: waiting for lock: %w", werr)
		}
		v, err = fn()
	}
	return v, err
}

// RunReadTx executes fn inside a read-only transaction so every read sees
// one snapshot.
func RunReadTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := whileBusy(ctx, func() (struct{}, error) {
		return struct{}{}, readOnce(ctx, db, fn)
	})
	return err
}

func readOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("dbopen: begin read: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Exec executes one statement. Tenant writes are single statements and all
// go through it.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return whileBusy(ctx, func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
