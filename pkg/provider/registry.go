package provider

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/einlass-dev/einlass/pkg/authn"
	"github.com/einlass-dev/einlass/pkg/config"
)

// regKey identifies one active registration.
type regKey struct {
	layer      string
	appContext string
}

// registration is one active (layer, app context) → provider binding.
type registration struct {
	id       string
	key      regKey
	provider Provider
	self     bool // created by Refresh from parsed configuration
}

// Snapshot is an immutable view of the parsed auth configuration at one
// epoch. Refresh replaces it whole; it is never mutated in place.
type Snapshot struct {
	// Epoch identifies this snapshot. It increases monotonically,
	// wrapping past zero to 1; 0 is reserved for "no configuration
	// loaded yet" and never reused.
	Epoch uint64

	layers map[regKey]config.AuthLayer
}

// Layer returns the configured entry for (layer, appContext). When no
// exact entry exists the layer default (empty app context) is consulted.
func (s *Snapshot) Layer(layer, appContext string) (config.AuthLayer, bool) {
	if l, ok := s.layers[regKey{layer, appContext}]; ok {
		return l, true
	}
	if appContext != "" {
		if l, ok := s.layers[regKey{layer, ""}]; ok {
			return l, true
		}
	}
	return config.AuthLayer{}, false
}

// Registry maps (layer, application context) pairs to authentication
// providers. At most one active registration exists per pair.
//
// A single reader/writer lock guards both the registration map and the
// current snapshot: Resolve and RegistrationIDs take the read lock and
// run concurrently; Register, Unregister, and Refresh take the write
// lock and are serialized.
type Registry struct {
	deps authn.ModuleDeps

	mu       sync.RWMutex
	byKey    map[regKey]*registration
	byID     map[string]*registration
	snapshot *Snapshot
}

// NewRegistry creates an empty registry. The deps are handed to modules
// built for config-backed providers; the propagation handler inside them
// is overridden per ServerConfig.
func NewRegistry(deps authn.ModuleDeps) *Registry {
	return &Registry{
		deps:     deps,
		byKey:    make(map[regKey]*registration),
		byID:     make(map[string]*registration),
		snapshot: &Snapshot{Epoch: 0, layers: map[regKey]config.AuthLayer{}},
	}
}

// Register binds a provider to a (layer, appContext) pair and returns the
// registration ID. An empty appContext registers the layer default.
// Fails with ErrDuplicateRegistration if the pair is already claimed.
func (r *Registry) Register(p Provider, layer, appContext string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("registering layer %q: nil provider", layer)
	}
	if layer == "" {
		return "", fmt.Errorf("registering provider: layer is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(p, layer, appContext, false)
}

// registerLocked inserts a registration. Caller holds the write lock.
func (r *Registry) registerLocked(p Provider, layer, appContext string, self bool) (string, error) {
	key := regKey{layer, appContext}
	if _, exists := r.byKey[key]; exists {
		return "", fmt.Errorf("layer %q app context %q: %w", layer, appContext, ErrDuplicateRegistration)
	}

	reg := &registration{
		id:       newRegistrationID(layer),
		key:      key,
		provider: p,
		self:     self,
	}
	r.byKey[key] = reg
	r.byID[reg.id] = reg
	return reg.id, nil
}

// Unregister removes a registration by ID. Unknown IDs are an error.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("registration %q: %w", id, ErrNotFound)
	}
	delete(r.byID, id)
	delete(r.byKey, reg.key)
	return nil
}

// Resolve returns the provider for (layer, appContext). The exact pair is
// consulted first, then the layer default (empty app context).
func (r *Registry) Resolve(layer, appContext string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.byKey[regKey{layer, appContext}]; ok {
		return reg.provider, nil
	}
	if appContext != "" {
		if reg, ok := r.byKey[regKey{layer, ""}]; ok {
			return reg.provider, nil
		}
	}
	return nil, fmt.Errorf("layer %q app context %q: %w", layer, appContext, ErrNotFound)
}

// RegistrationIDs lists active registration IDs, restricted to one layer
// when layer is non-empty. Order is deterministic.
func (r *Registry) RegistrationIDs(layer string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, reg := range r.byID {
		if layer == "" || reg.key.layer == layer {
			ids = append(ids, reg.id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns the current configuration snapshot. The returned value
// is immutable; callers compare its Epoch to detect staleness.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Epoch returns the current configuration epoch.
func (r *Registry) Epoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Epoch
}

// Refresh installs a freshly parsed layer configuration under a new
// epoch and reconciles self-registrations against it: layers that
// disappeared have their default registration removed, newly present
// layers are self-registered. Manually registered providers are left
// untouched. The swap is atomic with respect to concurrent Resolve
// calls; resolvers see either the old or the new mapping in full.
func (r *Registry) Refresh(layers []config.AuthLayer) error {
	newLayers := make(map[regKey]config.AuthLayer, len(layers))
	for _, l := range layers {
		key := regKey{l.Layer, l.AppContext}
		if _, dup := newLayers[key]; dup {
			return fmt.Errorf("refresh: duplicate entry for layer %q app context %q", l.Layer, l.AppContext)
		}
		newLayers[key] = l
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Drop self-registrations for layers no longer configured.
	for key, reg := range r.byKey {
		if !reg.self {
			continue
		}
		if _, still := newLayers[key]; !still {
			delete(r.byKey, key)
			delete(r.byID, reg.id)
		}
	}

	// Self-register newly configured layers that nothing claims yet.
	for key := range newLayers {
		if _, taken := r.byKey[key]; taken {
			continue
		}
		p := &configProvider{reg: r, layer: key.layer, appContext: key.appContext}
		if _, err := r.registerLocked(p, key.layer, key.appContext, true); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
	}

	r.snapshot = &Snapshot{
		Epoch:  nextEpoch(r.snapshot.Epoch),
		layers: newLayers,
	}
	return nil
}

// nextEpoch increments an epoch, wrapping past zero to 1 so that 0 is
// never reused once configuration has been loaded.
func nextEpoch(e uint64) uint64 {
	e++
	if e == 0 {
		e = 1
	}
	return e
}

// newRegistrationID creates a unique registration identifier. The layer
// prefix is informational only.
func newRegistrationID(layer string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return layer + ":" + hex.EncodeToString(b)
}
