// Package authn defines the contracts of the einlass authentication
// interception layer: the per-request auth module, the credential
// validator and identity propagation seams, and the identity carried
// through the request context.
//
// A module inspects one request/response exchange and decides whether it
// is a login or logout action, an authenticated resource access, or an
// anonymous one. Identity is derived per request from session content;
// the module keeps no request state of its own. The verified identity is
// handed to the host through an explicit PropagationHandler callback and
// the request context, never through hidden ambient state.
package authn
