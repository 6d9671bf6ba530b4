package session

import (
	"container/list"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// MemoryConfig holds settings for the in-memory session store.
type MemoryConfig struct {
	// CookieName is the session cookie name (default: "einlass_session").
	CookieName string

	// SigningKey is the HMAC key for the session cookie token. Required.
	SigningKey []byte

	// TTL is the idle lifetime of a session (default: 30 minutes).
	TTL time.Duration

	// MaxSessions bounds the store; 0 means unlimited. The least recently
	// seen session is evicted when the limit is reached.
	MaxSessions int

	// CookiePath scopes the session cookie (default: "/").
	CookiePath string

	// Secure marks the cookie as HTTPS-only.
	Secure bool
}

// defaults applies default values for unset configuration fields.
func (c *MemoryConfig) defaults() {
	if c.CookieName == "" {
		c.CookieName = "einlass_session"
	}
	if c.TTL == 0 {
		c.TTL = 30 * time.Minute
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
}

// MemoryStore keeps sessions in memory with idle expiry and optional LRU
// eviction. Sessions are lost on restart.
type MemoryStore struct {
	cfg   MemoryConfig
	codec tokenCodec

	mu       sync.RWMutex
	sessions map[string]*record
	lruList  *list.List // front = most recently seen
}

// Ensure MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)

// record is the shared server-side state of one session. Attach hands out
// per-request handles over it; the record's own mutex serializes value
// access across concurrent requests from the same client.
type record struct {
	id       string
	mu       sync.Mutex
	values   map[string]any
	lastSeen time.Time
	valid    bool
	lruElem  *list.Element
}

// NewMemory creates an in-memory session store.
func NewMemory(cfg MemoryConfig) (*MemoryStore, error) {
	cfg.defaults()
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("session: signing key is required")
	}
	return &MemoryStore{
		cfg:      cfg,
		codec:    tokenCodec{key: cfg.SigningKey, ttl: cfg.TTL},
		sessions: make(map[string]*record),
		lruList:  list.New(),
	}, nil
}

// Attach resolves the request's session from its cookie, or creates a new
// one. A missing, tampered, or expired cookie yields a fresh session; the
// client is never handed an error for bad cookie material.
func (s *MemoryStore) Attach(w http.ResponseWriter, r *http.Request) (Session, error) {
	if cookie, err := r.Cookie(s.cfg.CookieName); err == nil {
		if sid, verr := s.codec.verify(cookie.Value); verr == nil {
			if rec := s.lookup(sid); rec != nil {
				return &handle{rec: rec, store: s, w: w}, nil
			}
		}
	}
	return s.create(w)
}

// lookup returns the live record for sid, removing it if idle-expired.
func (s *MemoryStore) lookup(sid string) *record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sid]
	if !ok || !rec.valid {
		return nil
	}
	if time.Since(rec.lastSeen) > s.cfg.TTL {
		s.removeLocked(rec)
		return nil
	}
	rec.lastSeen = time.Now()
	s.lruList.MoveToFront(rec.lruElem)
	return rec
}

// create allocates a new session and sets its cookie on the response.
func (s *MemoryStore) create(w http.ResponseWriter) (Session, error) {
	sid := newSessionID()
	token, err := s.codec.sign(sid)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.evictOldestLocked()
	}
	rec := &record{
		id:       sid,
		values:   make(map[string]any),
		lastSeen: time.Now(),
		valid:    true,
	}
	rec.lruElem = s.lruList.PushFront(rec)
	s.sessions[sid] = rec
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     s.cfg.CookiePath,
		MaxAge:   int(s.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return &handle{rec: rec, store: s, w: w}, nil
}

// evictOldestLocked drops the least recently seen session. Caller holds mu.
func (s *MemoryStore) evictOldestLocked() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	s.removeLocked(back.Value.(*record))
}

// removeLocked deletes a record from the store. Caller holds mu.
func (s *MemoryStore) removeLocked(rec *record) {
	rec.valid = false
	delete(s.sessions, rec.id)
	if rec.lruElem != nil {
		s.lruList.Remove(rec.lruElem)
		rec.lruElem = nil
	}
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// newSessionID creates a new random session identifier as a hex string.
func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// handle is the per-request view of a session returned by Attach.
type handle struct {
	rec   *record
	store *MemoryStore
	w     http.ResponseWriter
}

func (h *handle) ID() string { return h.rec.id }

func (h *handle) Get(key string) (any, bool) {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	v, ok := h.rec.values[key]
	return v, ok
}

func (h *handle) Set(key string, value any) {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	h.rec.values[key] = value
}

func (h *handle) Delete(key string) {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	delete(h.rec.values, key)
}

func (h *handle) Valid() bool {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return h.rec.valid
}

// Invalidate removes the session server-side and expires the cookie.
func (h *handle) Invalidate() {
	h.store.mu.Lock()
	h.store.removeLocked(h.rec)
	h.store.mu.Unlock()

	h.rec.mu.Lock()
	h.rec.values = make(map[string]any)
	h.rec.mu.Unlock()

	http.SetCookie(h.w, &http.Cookie{
		Name:     h.store.cfg.CookieName,
		Value:    "",
		Path:     h.store.cfg.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.store.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
