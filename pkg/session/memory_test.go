package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testKey = []byte("test-signing-key-0123456789abcdef")

func newTestStore(t *testing.T, cfg MemoryConfig) *MemoryStore {
	t.Helper()
	if cfg.SigningKey == nil {
		cfg.SigningKey = testKey
	}
	s, err := NewMemory(cfg)
	if err != nil {
		t.Fatalf("NewMemory() error: %v", err)
	}
	return s
}

// attach runs one request against the store, carrying the given cookie if
// non-nil, and returns the session plus the response recorder.
func attach(t *testing.T, s *MemoryStore, cookie *http.Cookie) (Session, *httptest.ResponseRecorder) {
	t.Helper()
	r := httptest.NewRequest("GET", "/page", nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	sess, err := s.Attach(w, r)
	if err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	return sess, w
}

// sessionCookie extracts the store's session cookie from a response.
func sessionCookie(t *testing.T, s *MemoryStore, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == s.cfg.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestAttach_CreatesSessionAndSetsCookie(t *testing.T) {
	s := newTestStore(t, MemoryConfig{})

	sess, w := attach(t, s, nil)
	if sess.ID() == "" {
		t.Error("new session has empty ID")
	}
	if !sess.Valid() {
		t.Error("new session is not valid")
	}

	c := sessionCookie(t, s, w)
	if c.Value == "" {
		t.Error("session cookie has empty value")
	}
	if c.Value == sess.ID() {
		t.Error("cookie carries the raw session ID, want a signed token")
	}
	if !c.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
	if s.Len() != 1 {
		t.Errorf("store has %d sessions, want 1", s.Len())
	}
}

func TestAttach_CookieRoundTrip(t *testing.T) {
	s := newTestStore(t, MemoryConfig{})

	first, w := attach(t, s, nil)
	first.Set("greeting", "hello")
	c := sessionCookie(t, s, w)

	second, _ := attach(t, s, c)
	if second.ID() != first.ID() {
		t.Errorf("second request got session %q, want %q", second.ID(), first.ID())
	}
	v, ok := second.Get("greeting")
	if !ok || v != "hello" {
		t.Errorf("Get(greeting) = (%v, %v), want (hello, true)", v, ok)
	}
	if s.Len() != 1 {
		t.Errorf("store has %d sessions, want 1", s.Len())
	}
}

func TestAttach_TamperedCookieGetsFreshSession(t *testing.T) {
	s := newTestStore(t, MemoryConfig{})

	first, w := attach(t, s, nil)
	c := sessionCookie(t, s, w)
	c.Value = c.Value + "x"

	second, _ := attach(t, s, c)
	if second.ID() == first.ID() {
		t.Error("tampered cookie resolved the original session")
	}
}

func TestAttach_ForeignKeyCookieGetsFreshSession(t *testing.T) {
	a := newTestStore(t, MemoryConfig{SigningKey: []byte("key-a-key-a-key-a-key-a-key-a-00")})
	b := newTestStore(t, MemoryConfig{SigningKey: []byte("key-b-key-b-key-b-key-b-key-b-00")})

	first, w := attach(t, a, nil)
	c := sessionCookie(t, a, w)

	// A token signed with a different key must not verify.
	second, _ := attach(t, b, c)
	if second.ID() == first.ID() {
		t.Error("cookie signed with a foreign key resolved a session")
	}
}

func TestInvalidate_RemovesSessionAndExpiresCookie(t *testing.T) {
	s := newTestStore(t, MemoryConfig{})

	sess, w := attach(t, s, nil)
	c := sessionCookie(t, s, w)

	w2 := httptest.NewRecorder()
	r2 := httptest.NewRequest("GET", "/logout", nil)
	r2.AddCookie(c)
	sess2, err := s.Attach(w2, r2)
	if err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if sess2.ID() != sess.ID() {
		t.Fatalf("second attach got a different session")
	}

	sess2.Invalidate()
	if sess2.Valid() {
		t.Error("session still valid after Invalidate()")
	}
	if s.Len() != 0 {
		t.Errorf("store has %d sessions after Invalidate, want 0", s.Len())
	}

	expired := sessionCookie(t, s, w2)
	if expired.MaxAge != -1 {
		t.Errorf("invalidated cookie MaxAge = %d, want -1", expired.MaxAge)
	}

	// Re-attaching with the old cookie starts a new session.
	sess3, _ := attach(t, s, c)
	if sess3.ID() == sess.ID() {
		t.Error("old cookie resolved the invalidated session")
	}

	// Invalidating twice is not an error.
	sess2.Invalidate()
}

func TestAttach_IdleExpiry(t *testing.T) {
	s := newTestStore(t, MemoryConfig{TTL: 10 * time.Millisecond})

	first, w := attach(t, s, nil)
	c := sessionCookie(t, s, w)

	time.Sleep(30 * time.Millisecond)

	second, _ := attach(t, s, c)
	if second.ID() == first.ID() {
		t.Error("idle-expired session was resolved")
	}
	if s.Len() != 1 {
		t.Errorf("store has %d sessions, want 1 (expired removed, fresh created)", s.Len())
	}
}

func TestAttach_LRUEviction(t *testing.T) {
	s := newTestStore(t, MemoryConfig{MaxSessions: 2})

	a, wa := attach(t, s, nil)
	ca := sessionCookie(t, s, wa)
	b, _ := attach(t, s, nil)

	// Touch a so b becomes the least recently seen.
	attach(t, s, ca)

	third, _ := attach(t, s, nil)
	if s.Len() != 2 {
		t.Fatalf("store has %d sessions, want 2", s.Len())
	}

	// a survived, b was evicted.
	got, _ := attach(t, s, ca)
	if got.ID() != a.ID() {
		t.Error("most recently seen session was evicted")
	}
	_ = b
	_ = third
}

func TestNewMemory_RequiresSigningKey(t *testing.T) {
	if _, err := NewMemory(MemoryConfig{}); err == nil {
		t.Error("NewMemory() without signing key succeeded, want error")
	}
}

func TestHandle_SetGetDelete(t *testing.T) {
	s := newTestStore(t, MemoryConfig{})
	sess, _ := attach(t, s, nil)

	if _, ok := sess.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
	sess.Set("k", 42)
	if v, ok := sess.Get("k"); !ok || v != 42 {
		t.Errorf("Get(k) = (%v, %v), want (42, true)", v, ok)
	}
	sess.Delete("k")
	if _, ok := sess.Get("k"); ok {
		t.Error("Get(k) present after Delete")
	}
}
