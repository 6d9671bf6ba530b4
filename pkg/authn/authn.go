package authn

import (
	"context"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/session"
)

// Status is the outcome of one module invocation.
type Status int

const (
	// Success means the exchange may proceed to the protected resource.
	// An Identity is attached when the request is authenticated; a nil
	// Identity means anonymous pass-through under an optional policy.
	Success Status = iota

	// SendContinue means the module has already written the response
	// (a redirect or challenge) and the host must not let the request
	// reach the protected resource.
	SendContinue

	// SendFailure means the module has written a terminal failure
	// response (for example 403) and processing stops.
	SendFailure
)

// AuthTypeForm tags exchanges authenticated by the form-login module.
const AuthTypeForm = "form"

// Identity is a verified principal with its group memberships. Groups
// keep the order produced by the credential validator at login time and
// are not re-validated on later requests in the same session.
type Identity struct {
	Name   string
	Groups []string
}

// Policy states whether the current request requires an authenticated
// identity before the protected resource may run. Immutable per request.
type Policy struct {
	Mandatory bool
}

// Message carries per-exchange state between the host pipeline and the
// module. The module fills AuthType and Identity on an authenticated
// Success outcome.
type Message struct {
	Policy   Policy
	AuthType string
	Identity *Identity
}

// CredentialValidator checks a username/password pair against an account
// source and returns the user's group identifiers on success.
//
// A rejected pair returns ErrInvalidCredentials; any other error is an
// infrastructure failure attributable to the validator. Implementations
// must not retain the password after the call returns, and the caller
// never stores it.
type CredentialValidator interface {
	Validate(ctx context.Context, username, password string) (groups []string, err error)
}

// PropagationHandler receives the verified identity of an authenticated
// request. Invoked exactly once per successfully authenticated exchange.
// This is the seam to the host's authorization or session-scoping
// mechanism; the layer assumes nothing about the host's principal
// representation beyond name plus ordered group identifiers.
type PropagationHandler interface {
	Propagate(ctx context.Context, id *Identity) error
}

// PropagationFunc adapts a function to the PropagationHandler interface.
type PropagationFunc func(ctx context.Context, id *Identity) error

func (f PropagationFunc) Propagate(ctx context.Context, id *Identity) error {
	return f(ctx, id)
}

// Module intercepts one HTTP request/response exchange.
//
// ValidateRequest decides the exchange outcome and performs the module's
// only permitted side effects: reading and writing the fixed session
// keys, invoking the credential validator, and writing the HTTP response
// at most once. SecureResponse is the outbound half; all current modules
// implement it as a no-op success.
type Module interface {
	ValidateRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *Message) (Status, error)
	SecureResponse(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *Message) (Status, error)
}

// ModuleDeps are the collaborators injected into a module at build time.
type ModuleDeps struct {
	Sessions  session.Store
	Validator CredentialValidator
	Handler   PropagationHandler
}

// ModuleFactory builds a module from its dependencies and configured
// options. Factories validate options eagerly: a malformed configuration
// fails here, before any request is processed.
type ModuleFactory func(deps ModuleDeps, opts map[string]string) (Module, error)
