package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeProxy is an in-memory stand-in for the backend auth proxy's state
// endpoints.
type fakeProxy struct {
	mu      sync.Mutex
	pending map[string]struct {
		state, verifier, redirectURI string
	}
	nextSessionID string
	requests      atomic.Int64
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{
		pending: make(map[string]struct{ state, verifier, redirectURI string }),
	}
}

func (f *fakeProxy) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/state", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Query().Get("action") {
		case "store":
			var body struct {
				State        string `json:"state"`
				CodeVerifier string `json:"code_verifier"`
				RedirectURI  string `json:"redirect_uri"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			id := f.nextSessionID
			if id == "" {
				id = "session-1"
			}
			f.pending[id] = struct{ state, verifier, redirectURI string }{body.State, body.CodeVerifier, body.RedirectURI}
			_ = json.NewEncoder(w).Encode(map[string]string{"session_id": id})
		case "retrieve":
			id := r.URL.Query().Get("session_id")
			entry, ok := f.pending[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if entry.state != r.URL.Query().Get("state") {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			delete(f.pending, id)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code_verifier": entry.verifier,
				"redirect_uri":  entry.redirectURI,
			})
		case "cleanup":
			delete(f.pending, r.URL.Query().Get("session_id"))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		var body struct {
			Code         string `json:"code"`
			CodeVerifier string `json:"code_verifier"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Code != "good-code" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
			"token_type":    "Bearer",
			"scope":         "openid email profile",
		})
	})
	return mux
}

func newTestClient(t *testing.T, proxyURL string) (*Client, *MemorySessionStorage) {
	t.Helper()
	storage := NewMemorySessionStorage()
	c := NewClient(ClientConfig{
		ClientID:     "test-client-id",
		RedirectURI:  "https://app.example.org/callback",
		ProxyBaseURL: proxyURL,
	}, storage)
	return c, storage
}

func TestBuildAuthorizationURL(t *testing.T) {
	proxy := newFakeProxy()
	srv := httptest.NewServer(proxy.handler())
	defer srv.Close()

	c, storage := newTestClient(t, srv.URL)

	authURL, err := c.BuildAuthorizationURL(context.Background())
	if err != nil {
		t.Fatalf("BuildAuthorizationURL: %v", err)
	}

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()

	if q.Get("client_id") != "test-client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q", q.Get("code_challenge_method"))
	}
	if q.Get("code_challenge") == "" || strings.Contains(q.Get("code_challenge"), "=") {
		t.Errorf("code_challenge = %q", q.Get("code_challenge"))
	}
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("access_type = %q, prompt = %q", q.Get("access_type"), q.Get("prompt"))
	}

	// The challenge in the URL must match the verifier parked at the proxy.
	proxy.mu.Lock()
	entry := proxy.pending["session-1"]
	proxy.mu.Unlock()
	if CodeChallenge(entry.verifier) != q.Get("code_challenge") {
		t.Error("code_challenge does not match the stored verifier")
	}
	if entry.state != q.Get("state") {
		t.Error("state does not match the stored state")
	}

	if id, ok := storage.Get(sessionIDKey); !ok || id != "session-1" {
		t.Errorf("session storage holds %q, want session-1", id)
	}
}

func TestBuildAuthorizationURLFailsFastWithDebugClientID(t *testing.T) {
	proxy := newFakeProxy()
	srv := httptest.NewServer(proxy.handler())
	defer srv.Close()

	for _, clientID := range []string{"", "debug-client-id"} {
		c := NewClient(ClientConfig{
			ClientID:     clientID,
			RedirectURI:  "https://app.example.org/callback",
			ProxyBaseURL: srv.URL,
		}, NewMemorySessionStorage())

		_, err := c.BuildAuthorizationURL(context.Background())
		if !errors.Is(err, ErrMissingClientID) {
			t.Errorf("clientID %q: err = %v, want ErrMissingClientID", clientID, err)
		}
	}

	if n := proxy.requests.Load(); n != 0 {
		t.Errorf("proxy saw %d requests, want 0", n)
	}
}

func TestIsCallbackURL(t *testing.T) {
	c, _ := newTestClient(t, "http://unused")

	cases := []struct {
		raw  string
		want bool
	}{
		{"https://app.example.org/callback?code=abc&state=xyz", true},
		{"https://app.example.org/callback?code=abc", false},
		{"https://app.example.org/callback?state=xyz", false},
		{"https://app.example.org/", false},
		{"https://app.example.org/callback?error=access_denied&state=xyz", false},
	}
	for _, tc := range cases {
		if got := c.IsCallbackURL(tc.raw); got != tc.want {
			t.Errorf("IsCallbackURL(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestProcessCallbackRoundTrip(t *testing.T) {
	proxy := newFakeProxy()
	srv := httptest.NewServer(proxy.handler())
	defer srv.Close()

	c, storage := newTestClient(t, srv.URL)

	authURL, err := c.BuildAuthorizationURL(context.Background())
	if err != nil {
		t.Fatalf("BuildAuthorizationURL: %v", err)
	}
	state := mustQueryParam(t, authURL, "state")

	callback := "https://app.example.org/callback?code=good-code&state=" + state
	res, err := c.ProcessCallback(context.Background(), callback)
	if err != nil {
		t.Fatalf("ProcessCallback: %v", err)
	}

	if res.Code != "good-code" {
		t.Errorf("code = %q", res.Code)
	}
	if res.CodeVerifier == "" || res.RedirectURI != "https://app.example.org/callback" {
		t.Errorf("verifier = %q, redirectURI = %q", res.CodeVerifier, res.RedirectURI)
	}
	if _, ok := storage.Get(sessionIDKey); ok {
		t.Error("session storage entry survived callback processing")
	}

	// The pending entry is one-time use; a replay must fail.
	storage.Set(sessionIDKey, "session-1")
	if _, err := c.ProcessCallback(context.Background(), callback); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("replay err = %v, want ErrStateNotFound", err)
	}
}

func TestProcessCallbackProviderError(t *testing.T) {
	c, storage := newTestClient(t, "http://unused")
	storage.Set(sessionIDKey, "session-1")

	_, err := c.ProcessCallback(context.Background(), "https://app.example.org/callback?error=access_denied&error_description=denied&state=s")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if pe.Code != "access_denied" || pe.Description != "denied" {
		t.Errorf("ProviderError = %+v", pe)
	}
	if _, ok := storage.Get(sessionIDKey); ok {
		t.Error("session storage entry survived provider error")
	}
}

func TestProcessCallbackSessionLost(t *testing.T) {
	c, _ := newTestClient(t, "http://unused")

	_, err := c.ProcessCallback(context.Background(), "https://app.example.org/callback?code=abc&state=xyz")
	if !errors.Is(err, ErrSessionLost) {
		t.Errorf("err = %v, want ErrSessionLost", err)
	}
}

func TestExchangeCodeForTokens(t *testing.T) {
	proxy := newFakeProxy()
	srv := httptest.NewServer(proxy.handler())
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)

	tokens, err := c.ExchangeCodeForTokens(context.Background(), "good-code", "verifier", "https://app.example.org/callback")
	if err != nil {
		t.Fatalf("ExchangeCodeForTokens: %v", err)
	}
	if tokens.AccessToken != "at-1" || tokens.RefreshToken != "rt-1" || tokens.ExpiresIn != 3600 {
		t.Errorf("tokens = %+v", tokens)
	}

	_, err = c.ExchangeCodeForTokens(context.Background(), "bad-code", "verifier", "https://app.example.org/callback")
	var ee *ExchangeError
	if !errors.As(err, &ee) || ee.StatusCode != http.StatusInternalServerError {
		t.Errorf("err = %v, want ExchangeError with status 500", err)
	}
}

func mustQueryParam(t *testing.T, raw, key string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	v := u.Query().Get(key)
	if v == "" {
		t.Fatalf("url %q has no %q param", raw, key)
	}
	return v
}
