package prospect

import (
	"errors"

	"github.com/hazyhaar/prospect/prospect/internal/store"
)

// ErrInvalidProfile is returned when a ClientProfile fails validation.
var ErrInvalidProfile = errors.New("prospect: invalid client profile")

// ErrInvalidInput is returned when an argument fails validation
// (tenant id, URL list, empty required field).
var ErrInvalidInput = errors.New("prospect: invalid input")

// ErrStorageUnavailable is returned when a tenant store cannot be opened,
// read or written.
var ErrStorageUnavailable = store.ErrStorageUnavailable

// ErrUnknownLead is returned when a solution or outreach references a lead
// that does not exist.
var ErrUnknownLead = store.ErrUnknownLead
