package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokenManager(proxyURL string, clock *manualClock) *TokenManager {
	return NewTokenManager(proxyURL,
		WithTokenClock(clock.Now),
		WithoutAutoRefresh(),
	)
}

func TestStoreTokensAndExpiry(t *testing.T) {
	clock := newManualClock()
	tm := newTestTokenManager("http://unused", clock)

	tm.StoreTokens("at-1", "rt-1", 3600, "Bearer", "openid")

	if got := tm.AccessToken(); got != "at-1" {
		t.Errorf("AccessToken = %q, want at-1", got)
	}
	if !tm.HasValidToken() {
		t.Error("HasValidToken = false right after storing")
	}

	// Effective expiry is expires_in minus the five-minute margin.
	clock.Advance(54 * time.Minute)
	if !tm.HasValidToken() {
		t.Error("token invalid before the margin-adjusted expiry")
	}

	clock.Advance(2 * time.Minute)
	if tm.HasValidToken() {
		t.Error("token still valid past the margin-adjusted expiry")
	}
	if got := tm.AccessToken(); got != "" {
		t.Errorf("AccessToken = %q after expiry, want empty", got)
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	clock := newManualClock()
	tm := newTestTokenManager("http://unused", clock)

	if err := tm.RefreshAccessToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("err = %v, want ErrNoRefreshToken", err)
	}

	tm.StoreTokens("at-1", "", 3600, "Bearer", "")
	if err := tm.RefreshAccessToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("err = %v, want ErrNoRefreshToken", err)
	}
}

func TestRefreshSuccessKeepsRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-2",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	}))
	defer srv.Close()

	clock := newManualClock()
	tm := newTestTokenManager(srv.URL, clock)
	tm.StoreTokens("at-1", "rt-1", 3600, "Bearer", "")

	if err := tm.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}

	if got := tm.AccessToken(); got != "at-2" {
		t.Errorf("AccessToken = %q, want at-2", got)
	}
	if got := tm.RefreshToken(); got != "rt-1" {
		t.Errorf("RefreshToken = %q, want rt-1 (kept across refresh)", got)
	}
}

func TestRefreshFailureClearsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	clock := newManualClock()
	tm := newTestTokenManager(srv.URL, clock)
	tm.StoreTokens("at-1", "rt-1", 3600, "Bearer", "")

	err := tm.RefreshAccessToken(context.Background())
	var ee *ExchangeError
	if !errors.As(err, &ee) || ee.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want ExchangeError 401", err)
	}

	if tm.HasValidToken() {
		t.Error("tokens survived a failed refresh")
	}
	if tm.RefreshToken() != "" {
		t.Error("refresh token survived a failed refresh")
	}
}

func TestConcurrentRefreshRejected(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-2",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	}))
	defer srv.Close()

	clock := newManualClock()
	tm := newTestTokenManager(srv.URL, clock)
	tm.StoreTokens("at-1", "rt-1", 3600, "Bearer", "")

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- tm.RefreshAccessToken(context.Background())
	}()

	// Wait for the first refresh to take the in-flight slot.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := tm.RefreshAccessToken(context.Background())
		if errors.Is(err, ErrAlreadyRefreshing) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never observed ErrAlreadyRefreshing, last err = %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if got := tm.AccessToken(); got != "at-2" {
		t.Errorf("AccessToken = %q, want at-2", got)
	}
}

func TestLogoutClearsStateDespiteNetworkFailure(t *testing.T) {
	clock := newManualClock()
	// Nothing listens on this address, so revocation fails.
	tm := newTestTokenManager("http://127.0.0.1:1", clock)
	tm.StoreTokens("at-1", "rt-1", 3600, "Bearer", "")

	tm.Logout(context.Background())

	if tm.HasValidToken() || tm.RefreshToken() != "" {
		t.Error("local state survived logout with a dead proxy")
	}
}

func TestSubscribersNotified(t *testing.T) {
	clock := newManualClock()
	tm := newTestTokenManager("http://unused", clock)

	var events []bool
	tm.Subscribe(func(authenticated bool) { events = append(events, authenticated) })

	tm.StoreTokens("at-1", "rt-1", 3600, "Bearer", "")
	tm.ClearTokens()

	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Errorf("events = %v, want [true false]", events)
	}
}

func TestValidateTokenRequiresToken(t *testing.T) {
	clock := newManualClock()
	tm := newTestTokenManager("http://unused", clock)

	if _, err := tm.ValidateToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}
