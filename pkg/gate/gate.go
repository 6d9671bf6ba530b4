// Package gate binds the provider registry into a hosting HTTP pipeline.
//
// The middleware resolves the provider for its layer, walks the
// ServerConfig/AuthContext chain, and runs the auth module for every
// inbound request. Requests the module validates proceed with the
// verified identity attached to their context; requests the module
// answered (login redirects, challenges, 403s) stop here.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/authn"
	"github.com/einlass-dev/einlass/pkg/observability"
	"github.com/einlass-dev/einlass/pkg/provider"
)

// Gate configures the authentication interception point.
type Gate struct {
	// Registry supplies the provider for Layer/AppContext.
	Registry *provider.Registry

	// Layer is the protocol layer to resolve (default provider.LayerHTTP).
	Layer string

	// AppContext scopes resolution to one hosted application; empty uses
	// the layer default.
	AppContext string

	// Policy decides per request whether authentication is mandatory.
	// nil means no request is mandatory.
	Policy func(*http.Request) authn.Policy

	// Handler receives verified identities. nil installs a no-op; the
	// identity still reaches the inner handler via the request context.
	Handler authn.PropagationHandler

	// Bypass lists exact paths that skip authentication entirely.
	Bypass []string
}

// DefaultBypassPaths lists paths that skip authentication.
var DefaultBypassPaths = []string{"/healthz", "/readyz", "/metrics"}

// Middleware returns the interception middleware. A request passes
// through untouched when no provider is registered for the layer or the
// configuration engages no module; both are deliberate "no auth" states,
// not errors.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	layer := g.Layer
	if layer == "" {
		layer = provider.LayerHTTP
	}
	handler := g.Handler
	if handler == nil {
		handler = authn.PropagationFunc(func(_ context.Context, _ *authn.Identity) error { return nil })
	}
	bypass := make(map[string]bool, len(g.Bypass))
	for _, p := range g.Bypass {
		bypass[p] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bypass[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		prov, err := g.Registry.Resolve(layer, g.AppContext)
		if errors.Is(err, provider.ErrNotFound) {
			observability.AuthDecisionsTotal.WithLabelValues("passthrough").Inc()
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			g.fail(w, r, err)
			return
		}

		sc, err := prov.ServerConfig(layer, g.AppContext, handler)
		if err != nil {
			g.fail(w, r, err)
			return
		}

		pol := authn.Policy{}
		if g.Policy != nil {
			pol = g.Policy(r)
		}

		actx, err := sc.AuthContext(sc.ContextID(r, pol))
		if errors.Is(err, provider.ErrNoMatchingPolicy) {
			observability.AuthDecisionsTotal.WithLabelValues("passthrough").Inc()
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			g.fail(w, r, err)
			return
		}

		msg := &authn.Message{Policy: pol}
		status, err := actx.ValidateRequest(r.Context(), w, r, msg)
		if err != nil {
			g.fail(w, r, err)
			return
		}

		switch status {
		case authn.Success:
			ctx := r.Context()
			if msg.Identity != nil {
				ctx = authn.WithIdentity(ctx, msg.Identity)
				observability.AuthDecisionsTotal.WithLabelValues("success").Inc()
				slog.Debug("request authenticated",
					"username", msg.Identity.Name,
					"auth_type", msg.AuthType,
					"path", r.URL.Path,
				)
			} else {
				observability.AuthDecisionsTotal.WithLabelValues("anonymous").Inc()
			}
			r = r.WithContext(ctx)
			next.ServeHTTP(w, r)
			if _, serr := actx.SecureResponse(ctx, w, r, msg); serr != nil {
				slog.Error("secure response failed", "path", r.URL.Path, "error", serr)
			}
		default:
			// SendContinue or SendFailure: the module already wrote the
			// response; the protected resource must not run.
			observability.AuthDecisionsTotal.WithLabelValues("challenge").Inc()
		}
	})
}

// fail reports an infrastructure failure. The detail goes to the log,
// never to the client.
func (g *Gate) fail(w http.ResponseWriter, r *http.Request, err error) {
	observability.AuthDecisionsTotal.WithLabelValues("failure").Inc()
	slog.Error("authentication failed",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error", err,
	)
	http.Error(w, "authentication error", http.StatusInternalServerError)
}
