package services

import "errors"

// Classified failure kinds. Every error leaving this package matches
// exactly one of these with errors.Is; raw storage or signing errors
// never cross the service boundary.
var (
	// ErrBadRequest signals a missing or invalid required field.
	ErrBadRequest = errors.New("bad request")

	// ErrConflict signals a duplicate username or email on registration.
	ErrConflict = errors.New("conflict")

	// ErrNotFound signals a login identifier that matches no user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized signals a password verification failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal signals token signing failure or an unexpected
	// persistence failure.
	ErrInternal = errors.New("internal error")
)
