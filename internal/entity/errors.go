package entity

import "errors"

var (
	// Validation errors
	ErrInvalidResource  = errors.New("invalid resource")
	ErrInvalidPartySize = errors.New("invalid party size")
	ErrInvalidVenue     = errors.New("invalid venue")
	ErrInvalidInterval  = errors.New("invalid interval")

	// Registration errors
	ErrInvalidRegistration = errors.New("registration not found")
	ErrAlreadyCancelled    = errors.New("registration already cancelled")

	// Retryable: the per-key lock was not acquired in time
	ErrBusy = errors.New("resource busy, retry later")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
)
