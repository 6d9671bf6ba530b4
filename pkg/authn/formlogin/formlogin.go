// Package formlogin implements the redirect-driven form-login auth
// module. One module instance serves both the redirecting and the
// 403-answering variant, selected by the failure_style option.
//
// State is never held in the module: a request is AUTHENTICATED when the
// session carries a username, LOGIN_RETRY when the session carries the
// retry marker, and UNAUTHENTICATED otherwise. The request URI decides
// whether the exchange is a login action, a logout action, or a resource
// access.
package formlogin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/einlass-dev/einlass/pkg/authn"
	"github.com/einlass-dev/einlass/pkg/observability"
	"github.com/einlass-dev/einlass/pkg/session"
)

// Name is the module's key in the provider factory table.
const Name = "formlogin"

// Module intercepts HTTP exchanges and drives the login/logout
// sub-protocol against the session store and credential validator.
type Module struct {
	opts      Options
	sessions  session.Store
	validator authn.CredentialValidator
	handler   authn.PropagationHandler
}

var _ authn.Module = (*Module)(nil)

// New builds a form-login module. It is the authn.ModuleFactory for Name.
// Missing collaborators or malformed options fail here, never at request
// time.
func New(deps authn.ModuleDeps, raw map[string]string) (authn.Module, error) {
	if deps.Sessions == nil {
		return nil, errors.New("formlogin: session store is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("formlogin: credential validator is required")
	}
	if deps.Handler == nil {
		return nil, errors.New("formlogin: propagation handler is required")
	}
	opts, err := parseOptions(raw)
	if err != nil {
		return nil, errors.Join(errors.New("formlogin: invalid options"), err)
	}
	return &Module{
		opts:      opts,
		sessions:  deps.Sessions,
		validator: deps.Validator,
		handler:   deps.Handler,
	}, nil
}

// ValidateRequest runs the per-request decision procedure. It writes the
// HTTP response at most once, and only on the SendContinue and
// SendFailure paths.
func (m *Module) ValidateRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *authn.Message) (authn.Status, error) {
	sess, err := m.sessions.Attach(w, r)
	if err != nil {
		return authn.SendFailure, authn.Failure("session", err)
	}

	switch {
	case strings.HasSuffix(r.URL.Path, m.opts.LoginAction):
		return m.login(ctx, w, r, sess)
	case strings.HasSuffix(r.URL.Path, m.opts.LogoutAction):
		return m.logout(w, r, sess)
	}
	return m.resource(ctx, w, r, sess, msg)
}

// SecureResponse is the outbound half; no response rewriting is performed.
func (m *Module) SecureResponse(_ context.Context, _ http.ResponseWriter, _ *http.Request, _ *authn.Message) (authn.Status, error) {
	return authn.Success, nil
}

// login handles a credential submission to the login-action path.
func (m *Module) login(ctx context.Context, w http.ResponseWriter, r *http.Request, sess session.Session) (authn.Status, error) {
	username := r.FormValue(m.opts.UsernameParam)
	password := r.FormValue(m.opts.PasswordParam)

	if username == "" || password == "" {
		// A failed-login UI outcome, not a protocol error.
		return m.loginRetry(w, r, sess, username, authn.ErrMissingCredentials)
	}

	// The password is handed to the validator and dropped; it is never
	// stored in the session or logged.
	start := time.Now()
	groups, err := m.validator.Validate(ctx, username, password)
	observability.ValidateDuration.Observe(time.Since(start).Seconds())
	if errors.Is(err, authn.ErrInvalidCredentials) {
		return m.loginRetry(w, r, sess, username, err)
	}
	if err != nil {
		observability.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return authn.SendFailure, authn.Failure("validate", err)
	}

	session.PutIdentity(sess, username, dropSelf(groups, username))
	session.ClearRetry(sess)

	target := m.redirectTarget(r, sess)
	session.ClearReturnURL(sess)
	observability.LoginAttemptsTotal.WithLabelValues("success").Inc()
	slog.Info("login succeeded", "username", username, "session", sess.ID())

	http.Redirect(w, r, target, http.StatusSeeOther)
	return authn.SendContinue, nil
}

// loginRetry records a failed attempt and sends the client back to the
// login page, carrying the original target and the attempted username so
// the form can re-display it. The reason stays server-side; the response
// does not reveal which of username/password was wrong.
func (m *Module) loginRetry(w http.ResponseWriter, r *http.Request, sess session.Session, username string, reason error) (authn.Status, error) {
	session.MarkRetry(sess, username)

	result := "invalid"
	if errors.Is(reason, authn.ErrMissingCredentials) {
		result = "missing"
	}
	observability.LoginAttemptsTotal.WithLabelValues(result).Inc()
	slog.Info("login failed", "username", username, "reason", result)

	loginURL, err := url.Parse(m.opts.LoginPage)
	if err != nil {
		return authn.SendFailure, authn.Failure("redirect", err)
	}
	q := loginURL.Query()
	if target := m.explicitTarget(r); target != "" {
		q.Set(m.opts.ReturnParam, target)
	} else if stored := session.ReturnURL(sess); stored != "" {
		q.Set(m.opts.ReturnParam, stored)
	}
	if username != "" {
		q.Set(m.opts.UsernameParam, username)
	}
	loginURL.RawQuery = q.Encode()

	http.Redirect(w, r, loginURL.String(), http.StatusSeeOther)
	return authn.SendContinue, nil
}

// logout invalidates the session and redirects to the return URL.
func (m *Module) logout(w http.ResponseWriter, r *http.Request, sess session.Session) (authn.Status, error) {
	target := m.redirectTarget(r, sess)

	session.ClearIdentity(sess)
	sess.Invalidate()
	observability.LogoutsTotal.Inc()

	http.Redirect(w, r, target, http.StatusSeeOther)
	return authn.SendContinue, nil
}

// resource handles a normal (non-action) request.
func (m *Module) resource(ctx context.Context, w http.ResponseWriter, r *http.Request, sess session.Session, msg *authn.Message) (authn.Status, error) {
	if username, groups, ok := session.IdentityOf(sess); ok {
		// Identity was verified at login time; it is propagated as-is,
		// never re-validated against the credential store.
		id := &authn.Identity{Name: username, Groups: groups}
		if err := m.handler.Propagate(ctx, id); err != nil {
			return authn.SendFailure, authn.Failure("propagate", err)
		}
		msg.AuthType = authn.AuthTypeForm
		msg.Identity = id
		return authn.Success, nil
	}

	if !msg.Policy.Mandatory {
		// Anonymous pass-through.
		return authn.Success, nil
	}

	if m.opts.FailureStyle == FailureForbidden {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return authn.SendFailure, nil
	}

	session.SetReturnURL(sess, r.URL.RequestURI())
	http.Redirect(w, r, m.opts.LoginPage, http.StatusFound)
	return authn.SendContinue, nil
}

// explicitTarget picks the redirect target from request parameters
// according to the configured precedence, or returns empty when the
// request names none.
func (m *Module) explicitTarget(r *http.Request) string {
	returnParams := []string{m.opts.ReturnParam, m.opts.CurrentParam}
	pageParams := []string{m.opts.LoginURLParam, m.opts.LogoutURLParam}

	order := append(returnParams, pageParams...)
	if m.opts.Precedence == PrecedencePageURL {
		order = append(pageParams, returnParams...)
	}
	for _, name := range order {
		if v := r.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

// redirectTarget resolves the post-action target: explicit request
// parameters first, then the session's recorded return URL, then "/".
// Absolute and protocol-relative targets are rejected to keep the module
// from becoming an open redirector.
func (m *Module) redirectTarget(r *http.Request, sess session.Session) string {
	target := m.explicitTarget(r)
	if target == "" {
		target = session.ReturnURL(sess)
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

// dropSelf removes the username from the group set if the validator
// returned it redundantly.
func dropSelf(groups []string, username string) []string {
	out := groups[:0]
	for _, g := range groups {
		if g != username {
			out = append(out, g)
		}
	}
	return out
}
