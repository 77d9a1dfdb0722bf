package domain

import "errors"

var (
	// ErrNotFound signals an unknown session, stream or scene identifier.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals a malformed request (missing required fields).
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyActive signals a start for a session that already owns a
	// live encoder handle.
	ErrAlreadyActive = errors.New("session already has an active stream")
)
