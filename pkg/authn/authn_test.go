package authn

import (
	"context"
	"errors"
	"testing"
)

func TestWithIdentity_RoundTrip(t *testing.T) {
	id := &Identity{Name: "alice", Groups: []string{"admins"}}
	ctx := WithIdentity(context.Background(), id)

	got := IdentityFromContext(ctx)
	if got == nil {
		t.Fatal("IdentityFromContext() = nil after WithIdentity")
	}
	if got.Name != "alice" {
		t.Errorf("Name = %q, want \"alice\"", got.Name)
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("IdentityFromContext(empty) = %v, want nil", got)
	}
}

func TestAuthenticationError_Unwrap(t *testing.T) {
	cause := errors.New("pool exhausted")
	err := Failure("validate", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not see the wrapped cause")
	}

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatal("errors.As() failed for *AuthenticationError")
	}
	if authErr.Op != "validate" {
		t.Errorf("Op = %q, want \"validate\"", authErr.Op)
	}
}

func TestAuthenticationError_DoesNotMatchSentinels(t *testing.T) {
	// Infrastructure failures and credential rejections are distinct
	// error shapes; a wrapped infrastructure error must not read as a
	// bad password.
	err := Failure("session", errors.New("store down"))
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("infrastructure failure matches ErrInvalidCredentials")
	}
}

func TestPropagationFunc_Adapts(t *testing.T) {
	var got *Identity
	h := PropagationFunc(func(_ context.Context, id *Identity) error {
		got = id
		return nil
	})

	id := &Identity{Name: "bob"}
	if err := h.Propagate(context.Background(), id); err != nil {
		t.Fatalf("Propagate() error: %v", err)
	}
	if got != id {
		t.Error("handler did not receive the identity")
	}
}
