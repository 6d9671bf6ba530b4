// Package provider implements the authentication provider registry and
// the configuration chain that turns a registered provider into a
// request-ready auth module.
//
// The chain mirrors the layering of the interception protocol: a Registry
// maps (layer, application context) pairs to Providers; a Provider hands
// out the ServerConfig for its pair; the ServerConfig derives an auth
// context ID from the request's policy and builds (and caches) one
// AuthContext per ID; the AuthContext owns the module instance that
// finally inspects requests.
//
// Configuration reload is epoch-based: Refresh atomically swaps an
// immutable Snapshot carrying a monotonically increasing epoch, so
// concurrent resolvers always observe either the old or the new mapping,
// never a partial one, and cached module resolutions can detect that they
// are stale.
package provider
