package provider

import (
	"errors"
	"fmt"
	"sync"

	"github.com/einlass-dev/einlass/pkg/authn"
)

// LayerHTTP is the protocol layer name for HTTP request interception.
// It is currently the only layer einlass ships a module for.
const LayerHTTP = "http"

// Sentinel errors for registry and configuration resolution.
var (
	// ErrDuplicateRegistration is returned when a provider registers for
	// a (layer, app context) key that already has an active registration.
	// Fatal to the caller; the existing registration is never replaced.
	ErrDuplicateRegistration = errors.New("provider already registered for layer and app context")

	// ErrNotFound is returned when no provider is registered for the key.
	ErrNotFound = errors.New("no provider registered")

	// ErrNoMatchingPolicy is returned when the layer entry names no auth
	// module. Callers treat it as "pass through unauthenticated, no
	// module engaged".
	ErrNoMatchingPolicy = errors.New("no auth module configured for this layer")

	// ErrUnknownModule is returned when configuration names a module that
	// is not in the factory table.
	ErrUnknownModule = errors.New("unknown auth module")
)

// Provider supplies the singleton authentication configuration for a
// (layer, application context) pair.
type Provider interface {
	// ServerConfig returns the configuration object creating auth
	// contexts for this pair. The handler receives verified identities
	// from the modules the configuration builds.
	ServerConfig(layer, appContext string, h authn.PropagationHandler) (*ServerConfig, error)
}

// Module factory table. Modules register their constructors here by name
// at program start; configuration resolves names against this table once
// per epoch. No reflection is involved.
var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]authn.ModuleFactory)
)

// RegisterModule adds a module constructor to the factory table. It
// panics if the name is already taken, since that is always a programming
// error wiring the process.
func RegisterModule(name string, f authn.ModuleFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("provider: module %q registered twice", name))
	}
	factories[name] = f
}

// moduleFactory looks up a registered constructor by name.
func moduleFactory(name string) (authn.ModuleFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// configProvider is the default provider the registry self-registers for
// every layer entry present in the parsed configuration. It reads its
// layer entry from the registry's current snapshot, so a refresh changes
// its behavior without re-creating it.
type configProvider struct {
	reg        *Registry
	layer      string
	appContext string

	mu sync.Mutex
	sc *ServerConfig
}

var _ Provider = (*configProvider)(nil)

// ServerConfig returns the server config for this provider's pair. The
// config is built once, bound to the handler of the first caller; the
// interception layer passes the same handler for the process lifetime.
func (p *configProvider) ServerConfig(layer, appContext string, h authn.PropagationHandler) (*ServerConfig, error) {
	if layer != p.layer || appContext != p.appContext {
		return nil, fmt.Errorf("provider serves layer %q app context %q: %w", p.layer, p.appContext, ErrNotFound)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sc == nil {
		p.sc = NewServerConfig(p.reg, p.layer, p.appContext, h)
	}
	return p.sc, nil
}
