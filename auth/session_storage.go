package auth

import "sync"

// sessionIDKey is the session-storage slot holding the pending auth session
// id between the redirect to the provider and the callback.
const sessionIDKey = "oauth_session_id"

// SessionStorage bridges short-lived per-login values across the provider
// redirect. Implementations must be safe for concurrent use.
type SessionStorage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemorySessionStorage is a mutex-guarded map implementation of
// SessionStorage.
type MemorySessionStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySessionStorage creates an empty in-memory session storage.
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{values: make(map[string]string)}
}

func (s *MemorySessionStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemorySessionStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemorySessionStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
