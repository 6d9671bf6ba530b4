// Package static provides a credential validator backed by a fixed
// in-memory account table. Passwords are stored as SHA-256 hashes and
// checked with constant-time comparison; it exists for tests, demos, and
// very small deployments.
package static

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/einlass-dev/einlass/pkg/authn"
)

// Account is the configuration format for a single user entry.
type Account struct {
	Username string
	Password string
	Groups   []string
}

// entry holds a hashed account. Plaintext passwords are not retained.
type entry struct {
	passwordHash [32]byte
	groups       []string
}

// Validator checks credentials against the static table.
type Validator struct {
	users map[string]entry
}

// Ensure Validator implements the contract at compile time.
var _ authn.CredentialValidator = (*Validator)(nil)

// New creates a static validator. Duplicate usernames are rejected;
// passwords are hashed immediately.
func New(accounts []Account) (*Validator, error) {
	v := &Validator{users: make(map[string]entry, len(accounts))}
	for _, a := range accounts {
		if a.Username == "" {
			return nil, fmt.Errorf("static validator: account with empty username")
		}
		if _, dup := v.users[a.Username]; dup {
			return nil, fmt.Errorf("static validator: duplicate account %q", a.Username)
		}
		v.users[a.Username] = entry{
			passwordHash: sha256.Sum256([]byte(a.Password)),
			groups:       append([]string(nil), a.Groups...),
		}
	}
	return v, nil
}

// Validate checks the pair and returns the account's groups. Unknown
// users and wrong passwords are indistinguishable to the caller, and a
// dummy comparison keeps the timing of the two cases aligned.
func (v *Validator) Validate(_ context.Context, username, password string) ([]string, error) {
	submitted := sha256.Sum256([]byte(password))

	e, ok := v.users[username]
	if !ok {
		var dummy [32]byte
		subtle.ConstantTimeCompare(submitted[:], dummy[:])
		return nil, authn.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare(submitted[:], e.passwordHash[:]) != 1 {
		return nil, authn.ErrInvalidCredentials
	}

	return append([]string(nil), e.groups...), nil
}
