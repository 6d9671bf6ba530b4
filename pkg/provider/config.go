package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/einlass-dev/einlass/pkg/authn"
)

// ServerConfig creates AuthContexts for one (layer, app context) pair.
//
// Module resolution is lazy: the first AuthContext request for a given
// context ID looks the module up in the factory table and builds it from
// the current snapshot's options. The result is cached for the lifetime
// of the epoch; after a Refresh the next lookup re-resolves against the
// new configuration.
type ServerConfig struct {
	reg        *Registry
	layer      string
	appContext string
	deps       authn.ModuleDeps

	mu       sync.Mutex
	epoch    uint64
	contexts map[string]*AuthContext
}

// NewServerConfig builds a server config reading layer entries from the
// registry's snapshots. A non-nil handler overrides the propagation
// handler in the registry's module deps.
func NewServerConfig(reg *Registry, layer, appContext string, h authn.PropagationHandler) *ServerConfig {
	deps := reg.deps
	if h != nil {
		deps.Handler = h
	}
	return &ServerConfig{
		reg:        reg,
		layer:      layer,
		appContext: appContext,
		deps:       deps,
	}
}

// ContextID derives the auth context identifier for a request. For the
// HTTP layer it is the string form of the request's mandatory flag, so
// each layer carries two context configurations: one for mandatory and
// one for optional access. Other layers get no context differentiation.
func (sc *ServerConfig) ContextID(_ *http.Request, p authn.Policy) string {
	if sc.layer != LayerHTTP {
		return ""
	}
	return strconv.FormatBool(p.Mandatory)
}

// AuthContext returns the auth context for the given ID, building the
// module on first use within the current epoch.
//
// Returns ErrNoMatchingPolicy when the configuration names no module for
// this pair; callers pass such requests through unauthenticated.
func (sc *ServerConfig) AuthContext(contextID string) (*AuthContext, error) {
	snap := sc.reg.Snapshot()

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.contexts == nil || sc.epoch != snap.Epoch {
		sc.contexts = make(map[string]*AuthContext)
		sc.epoch = snap.Epoch
	}
	if actx, ok := sc.contexts[contextID]; ok {
		return actx, nil
	}

	layerCfg, ok := snap.Layer(sc.layer, sc.appContext)
	if !ok || layerCfg.Module == "" {
		return nil, fmt.Errorf("layer %q app context %q: %w", sc.layer, sc.appContext, ErrNoMatchingPolicy)
	}

	factory, ok := moduleFactory(layerCfg.Module)
	if !ok {
		return nil, fmt.Errorf("module %q: %w", layerCfg.Module, ErrUnknownModule)
	}

	mod, err := factory(sc.deps, layerCfg.Options)
	if err != nil {
		return nil, fmt.Errorf("building module %q: %w", layerCfg.Module, err)
	}

	actx := &AuthContext{id: contextID, module: mod}
	sc.contexts[contextID] = actx
	return actx, nil
}

// AuthContext binds one module instance to a specific auth context ID.
// It owns the module for the lifetime of the (ID, options) combination.
type AuthContext struct {
	id     string
	module authn.Module
}

// ID returns the auth context identifier this context was built for.
func (a *AuthContext) ID() string { return a.id }

// ValidateRequest delegates the inbound half to the module.
func (a *AuthContext) ValidateRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *authn.Message) (authn.Status, error) {
	return a.module.ValidateRequest(ctx, w, r, msg)
}

// SecureResponse delegates the outbound half to the module.
func (a *AuthContext) SecureResponse(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *authn.Message) (authn.Status, error) {
	return a.module.SecureResponse(ctx, w, r, msg)
}
