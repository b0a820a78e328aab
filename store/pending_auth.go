package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// Sentinel errors for pending-auth lookups. Handlers map these to HTTP statuses
// without leaking which condition fired beyond the status code itself.
var (
	ErrPendingAuthNotFound = errors.New("pending auth state not found")
	ErrPendingAuthExpired  = errors.New("pending auth state expired")
	ErrStateMismatch       = errors.New("state mismatch")
)

const (
	// DefaultPendingAuthTTL bounds how long a login may sit between the
	// authorization redirect and the callback.
	DefaultPendingAuthTTL = 30 * time.Minute

	// DefaultSweepInterval is how often the in-memory store purges expired
	// entries.
	DefaultSweepInterval = 1 * time.Hour
)

// PendingAuthStore parks the CSRF state and PKCE verifier of an in-flight
// login. Retrieve consumes the entry (one-time use); a second call with the
// same session id returns ErrPendingAuthNotFound.
type PendingAuthStore interface {
	Store(ctx context.Context, state, codeVerifier, redirectURI string) (string, error)
	Retrieve(ctx context.Context, sessionID, state string) (*models.PendingAuthState, error)
	Cleanup(ctx context.Context, sessionID string) error
	Close() error
}

// MemoryPendingAuthStore keeps pending logins in a process-local map with a
// periodic sweep. A restart drops all pending logins, which is an accepted
// failure mode: the user restarts the login.
type MemoryPendingAuthStore struct {
	mu      sync.RWMutex
	entries map[string]*models.PendingAuthState

	ttl        time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	done chan struct{}
	once sync.Once
}

// MemoryPendingAuthOption customizes a MemoryPendingAuthStore.
type MemoryPendingAuthOption func(*MemoryPendingAuthStore)

// WithTTL overrides the entry TTL.
func WithTTL(ttl time.Duration) MemoryPendingAuthOption {
	return func(s *MemoryPendingAuthStore) { s.ttl = ttl }
}

// WithClock injects the clock used for expiry decisions.
func WithClock(now func() time.Time) MemoryPendingAuthOption {
	return func(s *MemoryPendingAuthStore) { s.now = now }
}

// WithLogger sets the logger used for sweep stats and security events.
func WithLogger(l zerolog.Logger) MemoryPendingAuthOption {
	return func(s *MemoryPendingAuthStore) { s.logger = l }
}

// WithSweepInterval overrides the sweep interval; the sweep goroutine starts
// only for positive intervals.
func WithSweepInterval(d time.Duration) MemoryPendingAuthOption {
	return func(s *MemoryPendingAuthStore) { s.sweepEvery = d }
}

// NewMemoryPendingAuthStore creates the store and starts its sweep goroutine.
func NewMemoryPendingAuthStore(opts ...MemoryPendingAuthOption) *MemoryPendingAuthStore {
	s := &MemoryPendingAuthStore{
		entries:    make(map[string]*models.PendingAuthState),
		ttl:        DefaultPendingAuthTTL,
		now:        time.Now,
		logger:     zerolog.Nop(),
		sweepEvery: DefaultSweepInterval,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepEvery > 0 {
		go s.sweepLoop()
	}
	return s
}

func (s *MemoryPendingAuthStore) Store(ctx context.Context, state, codeVerifier, redirectURI string) (string, error) {
	if state == "" || codeVerifier == "" || redirectURI == "" {
		return "", errors.New("state, codeVerifier and redirectURI are required")
	}
	sessionID, err := models.NewSessionID()
	if err != nil {
		return "", err
	}
	now := s.now()
	entry := &models.PendingAuthState{
		SessionID:    sessionID,
		State:        state,
		CodeVerifier: codeVerifier,
		RedirectURI:  redirectURI,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	s.mu.Lock()
	s.entries[sessionID] = entry
	s.mu.Unlock()
	return sessionID, nil
}

// Retrieve looks up and consumes a pending login. The entry is invalidated
// before the method returns, foreclosing a second reader; expired entries are
// deleted on sight. A state mismatch leaves the entry in place and is logged
// as a security event.
func (s *MemoryPendingAuthStore) Retrieve(ctx context.Context, sessionID, state string) (*models.PendingAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrPendingAuthNotFound
	}
	if s.now().After(entry.ExpiresAt) {
		delete(s.entries, sessionID)
		return nil, ErrPendingAuthExpired
	}
	if entry.State != state {
		s.logger.Warn().
			Str("security_event", "csrf_state_mismatch").
			Str("session_id", truncateID(sessionID)).
			Msg("pending auth retrieve with mismatched state")
		return nil, ErrStateMismatch
	}
	delete(s.entries, sessionID)
	return entry, nil
}

func (s *MemoryPendingAuthStore) Cleanup(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *MemoryPendingAuthStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Len reports the number of live entries; used by tests and the sweep log.
func (s *MemoryPendingAuthStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryPendingAuthStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryPendingAuthStore) sweep() {
	now := s.now()
	s.mu.Lock()
	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Int("remaining", remaining).
			Msg("pending auth sweep")
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
