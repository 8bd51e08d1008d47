package domain

import "errors"

// Sentinel errors returned by the services. Handlers map them to status codes,
// so wrap them with %w and keep store-specific errors out of the message.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
