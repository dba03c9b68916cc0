package sentinel

import "errors"

// Sentinel errors for repository facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors:
// - ErrNotFound: no object with the given id, slug or email
// - ErrConflict: a uniqueness rule (slug, email, role per object) was hit
// - ErrExpired: a login session is past its expiry
// - ErrInvalidState: object is in the wrong state for the operation
// - ErrUnavailable: a backing service (database, redis, kafka) is down
// - ErrReadOnly: a write was attempted inside a read-only view
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrReadOnly     = errors.New("read-only transaction")
)
