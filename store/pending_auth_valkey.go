package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	valkey "github.com/valkey-io/valkey-go"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// ValkeyPendingAuthStore stores pending logins in Valkey (Redis-compatible),
// for deployments where the token proxy runs more than one instance and an
// in-process map would strand callbacks on the wrong replica. Key expiry is
// delegated to Valkey; the payload carries ExpiresAt as a second line of
// defense for clock-skewed replicas.
type ValkeyPendingAuthStore struct {
	client     valkey.Client
	prefix     string
	ttl        time.Duration
	ownsClient bool
	logger     zerolog.Logger
}

// NewValkeyPendingAuthStore dials addr (e.g. "127.0.0.1:6379") and owns the
// resulting client; Close shuts it down.
func NewValkeyPendingAuthStore(addr, prefix string, ttl time.Duration, logger zerolog.Logger) (*ValkeyPendingAuthStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	s := newValkeyPendingAuthStore(cli, prefix, ttl, logger)
	s.ownsClient = true
	return s, nil
}

// NewValkeyPendingAuthStoreWithClient wraps an existing client; Close leaves
// the client open for its other users.
func NewValkeyPendingAuthStoreWithClient(client valkey.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *ValkeyPendingAuthStore {
	return newValkeyPendingAuthStore(client, prefix, ttl, logger)
}

func newValkeyPendingAuthStore(client valkey.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *ValkeyPendingAuthStore {
	if prefix == "" {
		prefix = "sk:"
	}
	if ttl <= 0 {
		ttl = DefaultPendingAuthTTL
	}
	return &ValkeyPendingAuthStore{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (s *ValkeyPendingAuthStore) key(sessionID string) string {
	return fmt.Sprintf("%spending_auth:%s", s.prefix, sessionID)
}

func (s *ValkeyPendingAuthStore) Store(ctx context.Context, state, codeVerifier, redirectURI string) (string, error) {
	if state == "" || codeVerifier == "" || redirectURI == "" {
		return "", errors.New("state, codeVerifier and redirectURI are required")
	}
	sessionID, err := models.NewSessionID()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
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
	key := s.key(sessionID)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Ex(s.ttl).Build()).Error(); err != nil {
		return "", err
	}
	return sessionID, nil
}

// retrieveScript atomically compares the stored state and deletes the entry
// in one server-side step, so two replicas racing on the same callback cannot
// both consume it. A mismatch leaves the entry in place, like the memory
// backend. The stored value is JSON and always starts with "{", so the
// mismatch sentinel cannot collide with a payload.
const retrieveScript = `
	local val = redis.call("get", KEYS[1])
	if not val then
		return false
	end
	local entry = cjson.decode(val)
	if entry.state == ARGV[1] then
		redis.call("del", KEYS[1])
		return val
	end
	return "MISMATCH"
`

func (s *ValkeyPendingAuthStore) Retrieve(ctx context.Context, sessionID, state string) (*models.PendingAuthState, error) {
	res := s.client.Do(ctx,
		s.client.B().Eval().Script(retrieveScript).Numkeys(1).Key(s.key(sessionID)).Arg(state).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return nil, ErrPendingAuthNotFound
		}
		return nil, res.Error()
	}
	val, err := res.ToString()
	if err != nil || val == "" {
		return nil, ErrPendingAuthNotFound
	}
	if val == "MISMATCH" {
		s.logger.Warn().
			Str("security_event", "csrf_state_mismatch").
			Str("session_id", truncateID(sessionID)).
			Msg("pending auth retrieve with mismatched state")
		return nil, ErrStateMismatch
	}

	var entry models.PendingAuthState
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal pending auth state: %w", err)
	}
	if entry.IsExpired() {
		return nil, ErrPendingAuthExpired
	}
	return &entry, nil
}

func (s *ValkeyPendingAuthStore) Cleanup(ctx context.Context, sessionID string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(sessionID)).Build()).Error()
}

func (s *ValkeyPendingAuthStore) Close() error {
	if s.ownsClient {
		s.client.Close()
	}
	return nil
}
