// Package session defines the session contract the authentication layer
// reads and writes, plus an in-memory store for tests and lightweight
// deployments. Auth modules only touch the fixed keys below; everything
// else in a session belongs to the hosting application.
package session

import "net/http"

// Fixed keys the authentication layer owns inside a session. The presence
// of KeyUsername is the sole marker that the session is authenticated.
const (
	KeyUsername  = "einlass.username"
	KeyGroups    = "einlass.groups"
	KeyRetry     = "einlass.retry"
	KeyRetryUser = "einlass.retry_username"
	KeyReturnURL = "einlass.return_url"
)

// Store resolves the session for an inbound request, creating one if the
// request carries no (or an invalid) session cookie.
type Store interface {
	Attach(w http.ResponseWriter, r *http.Request) (Session, error)
}

// Session is a per-client key/value bag with cookie-based identity.
// Implementations serialize concurrent access from requests sharing a
// session; callers perform no additional locking.
type Session interface {
	// ID returns the session identifier. Never exposed to clients in
	// plain form; the cookie carries a signed token wrapping it.
	ID() string

	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)

	// Valid reports whether the session is still live. Invalidated or
	// expired sessions return false.
	Valid() bool

	// Invalidate terminates the session and expires its cookie.
	// Invalidating an already-invalid session is not an error.
	Invalidate()
}

// PutIdentity records a verified identity in the session. Groups keep
// their order as produced by the credential validator.
func PutIdentity(s Session, username string, groups []string) {
	s.Set(KeyUsername, username)
	s.Set(KeyGroups, append([]string(nil), groups...))
}

// IdentityOf reads the authenticated identity from the session.
// ok is false when the session holds no username, which means
// unauthenticated regardless of any other keys present.
func IdentityOf(s Session) (username string, groups []string, ok bool) {
	v, present := s.Get(KeyUsername)
	if !present {
		return "", nil, false
	}
	username, _ = v.(string)
	if username == "" {
		return "", nil, false
	}
	if g, present := s.Get(KeyGroups); present {
		if gs, isSlice := g.([]string); isSlice {
			groups = append([]string(nil), gs...)
		}
	}
	return username, groups, true
}

// ClearIdentity removes all authentication keys from the session.
func ClearIdentity(s Session) {
	s.Delete(KeyUsername)
	s.Delete(KeyGroups)
	s.Delete(KeyRetry)
	s.Delete(KeyRetryUser)
	s.Delete(KeyReturnURL)
}

// MarkRetry records a failed login attempt, stashing the submitted
// username so the login form can re-display it.
func MarkRetry(s Session, username string) {
	s.Set(KeyRetry, true)
	s.Set(KeyRetryUser, username)
}

// RetryPending reports whether a failed login attempt is awaiting
// resubmission, and the username from that attempt.
func RetryPending(s Session) (username string, pending bool) {
	v, present := s.Get(KeyRetry)
	if !present {
		return "", false
	}
	if b, isBool := v.(bool); !isBool || !b {
		return "", false
	}
	if u, present := s.Get(KeyRetryUser); present {
		username, _ = u.(string)
	}
	return username, true
}

// ClearRetry removes the failed-attempt state after a successful login.
func ClearRetry(s Session) {
	s.Delete(KeyRetry)
	s.Delete(KeyRetryUser)
}

// SetReturnURL records the URL a client should land on after logging in.
func SetReturnURL(s Session, u string) {
	s.Set(KeyReturnURL, u)
}

// ClearReturnURL removes the recorded post-login target.
func ClearReturnURL(s Session) {
	s.Delete(KeyReturnURL)
}

// ReturnURL returns the recorded post-login target, or empty string.
func ReturnURL(s Session) string {
	if v, present := s.Get(KeyReturnURL); present {
		if u, isString := v.(string); isString {
			return u
		}
	}
	return ""
}
