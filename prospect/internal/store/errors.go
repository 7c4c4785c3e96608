package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStorageUnavailable is returned when the tenant file cannot be
	// created, opened or written. It is the only hard failure of the store.
	ErrStorageUnavailable = errors.New("store: storage unavailable")
	// ErrUnknownLead is returned when a solution or outreach row references
	// a lead id that does not exist in the tenant.
	ErrUnknownLead = errors.New("store: unknown lead")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

func isForeignKeyErr(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
