package domain

import "errors"

var (
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrUnauthorized          = errors.New("action not permitted")
	ErrConfiguration         = errors.New("configuration error")
	ErrDuplicateTicketNumber = errors.New("duplicate ticket number")
	ErrInvariantViolation    = errors.New("invariant violation")
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrConflict              = errors.New("conflict")
)
