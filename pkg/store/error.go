package store

import "errors"

// ErrMissingTenant is the invariant-violation error: a store operation was
// attempted without a tenant identifier. Callers must treat it as fatal for
// the operation; nothing is read or written when it is returned.
var ErrMissingTenant = errors.New("store operation missing tenant id")

// ErrMissingCaller is returned when a caller-scoped record names no caller.
var ErrMissingCaller = errors.New("caller-scoped record missing caller id")

// ErrMissingKey is returned when a record has no key.
var ErrMissingKey = errors.New("record missing key")

// ErrScopeMismatch is returned when a tenant-scoped record names a caller.
var ErrScopeMismatch = errors.New("tenant-scoped record must not name a caller")

// UnavailableError wraps a backend failure (unreachable database, timeout).
// The hot path treats it as "proceed without this context".
type UnavailableError struct {
	Err error
}

func (e UnavailableError) Error() string {
	return "memory store unavailable: " + e.Err.Error()
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}
