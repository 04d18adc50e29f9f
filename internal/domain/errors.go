package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals an id lookup miss. Non-fatal for the caller.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidQuery rejects unsupported filter criteria before any
	// matching is attempted.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrTransportTimeout means no response arrived within the bounded
	// wait. Distinguished from other network errors so callers can decide
	// whether a retry makes sense.
	ErrTransportTimeout = errors.New("no response within timeout")

	// ErrNoSession means no authenticated transaction to the target host
	// exists in the store. Fatal for an automation run, not for the store.
	ErrNoSession = errors.New("no authenticated session found in captured traffic")

	// ErrAuthExpired means the derived credential was rejected (401); the
	// session must be re-derived before further attempts.
	ErrAuthExpired = errors.New("session credential rejected, re-derive before retrying")

	// ErrForbidden means the derived credential lacks access (403).
	ErrForbidden = errors.New("session credential forbidden for target")
)

// ValidationError rejects a malformed write. Nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NetworkError wraps a transport failure from replay or automation.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
