package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/buntdb"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// BuntPendingAuthStore stores pending logins in BuntDB, using its native key
// expiry in place of a sweep goroutine. The engine TTL is set to twice the
// logical TTL so that a retrieve shortly after logical expiry can still report
// ErrPendingAuthExpired instead of collapsing into not-found; once the engine
// drops the key the distinction is gone, which callers treat identically.
type BuntPendingAuthStore struct {
	db     *buntdb.DB
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewBuntPendingAuthStore opens (or creates) the BuntDB file at path; use
// ":memory:" for an ephemeral store.
func NewBuntPendingAuthStore(path string, ttl time.Duration, logger zerolog.Logger) (*BuntPendingAuthStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultPendingAuthTTL
	}
	return &BuntPendingAuthStore{db: db, ttl: ttl, now: time.Now, logger: logger}, nil
}

// SetClock injects the clock used for logical-expiry decisions. Engine expiry
// still runs on wall time.
func (s *BuntPendingAuthStore) SetClock(now func() time.Time) { s.now = now }

func pendingKey(sessionID string) string { return "pending_auth:" + sessionID }

func (s *BuntPendingAuthStore) Store(ctx context.Context, state, codeVerifier, redirectURI string) (string, error) {
	if state == "" || codeVerifier == "" || redirectURI == "" {
		return "", errors.New("state, codeVerifier and redirectURI are required")
	}
	sessionID, err := models.NewSessionID()
	if err != nil {
		return "", err
	}
	now := s.now()
	entry := models.PendingAuthState{
		SessionID:    sessionID,
		State:        state,
		CodeVerifier: codeVerifier,
		RedirectURI:  redirectURI,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal pending auth state: %w", err)
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(pendingKey(sessionID), string(data), &buntdb.SetOptions{
			Expires: true,
			TTL:     2 * s.ttl,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *BuntPendingAuthStore) Retrieve(ctx context.Context, sessionID, state string) (*models.PendingAuthState, error) {
	var entry models.PendingAuthState
	// Read and consume inside one transaction so a second reader can never
	// observe the same entry.
	err := s.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(pendingKey(sessionID))
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return fmt.Errorf("unmarshal pending auth state: %w", err)
		}
		if s.now().After(entry.ExpiresAt) {
			_, _ = tx.Delete(pendingKey(sessionID))
			return ErrPendingAuthExpired
		}
		if entry.State != state {
			return ErrStateMismatch
		}
		_, err = tx.Delete(pendingKey(sessionID))
		return err
	})
	switch {
	case errors.Is(err, buntdb.ErrNotFound):
		return nil, ErrPendingAuthNotFound
	case errors.Is(err, ErrStateMismatch):
		s.logger.Warn().
			Str("security_event", "csrf_state_mismatch").
			Str("session_id", truncateID(sessionID)).
			Msg("pending auth retrieve with mismatched state")
		return nil, ErrStateMismatch
	case err != nil:
		return nil, err
	}
	return &entry, nil
}

func (s *BuntPendingAuthStore) Cleanup(ctx context.Context, sessionID string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(pendingKey(sessionID))
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}

func (s *BuntPendingAuthStore) Close() error {
	return s.db.Close()
}
