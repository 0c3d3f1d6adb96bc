package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: record does not exist
//   - ErrAlreadyExists: create collided with an existing key
//   - ErrConflict: guarded write lost against a concurrent writer
//   - ErrExpired: record is past its expiry time
//   - ErrInvalidState: record is in a state that forbids the operation
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	ErrExpired       = errors.New("expired")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
