package authn

import (
	"errors"
	"fmt"
)

// Sentinel errors for the authentication protocol. The first two are
// protocol-shape outcomes recovered locally into redirect responses;
// they never surface to the host pipeline.
var (
	// ErrInvalidCredentials is returned by credential validators when the
	// username/password pair does not match. Deliberately silent about
	// which half was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingCredentials marks a login action submitted without both a
	// username and a password. Treated as a failed attempt, not a fault.
	ErrMissingCredentials = errors.New("missing credentials")
)

// AuthenticationError wraps an unexpected failure from the validator, the
// session store, or response writing. It aborts the request; the host
// decides the user-visible failure page. Never carries credentials.
type AuthenticationError struct {
	Op  string // the operation that failed, e.g. "validate", "session"
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication %s failed: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Failure wraps err as an AuthenticationError for operation op.
func Failure(op string, err error) error {
	return &AuthenticationError{Op: op, Err: err}
}
