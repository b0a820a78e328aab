package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// newAuthStack wires a client, token manager, and orchestrator against a fake
// proxy whose validate endpoint reports the given admin status.
func newAuthStack(t *testing.T, isAdmin bool) (*Orchestrator, *TokenManager, *fakeProxy, func()) {
	t.Helper()

	proxy := newFakeProxy()
	mux := http.NewServeMux()
	mux.Handle("/auth/state", proxy.handler())
	mux.Handle("/auth/token", proxy.handler())
	mux.HandleFunc("/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin {
			w.WriteHeader(http.StatusForbidden)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  isAdmin,
			"is_admin": isAdmin,
			"user": map[string]string{
				"email": "vol@example.org",
				"name":  "Pat",
			},
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	srv := httptest.NewServer(mux)

	storage := NewMemorySessionStorage()
	client := NewClient(ClientConfig{
		ClientID:     "test-client-id",
		RedirectURI:  "https://app.example.org/callback",
		ProxyBaseURL: srv.URL,
	}, storage)
	tokens := NewTokenManager(srv.URL, WithoutAutoRefresh())
	orch := NewOrchestrator(client, tokens)

	return orch, tokens, proxy, srv.Close
}

func completeLogin(t *testing.T, orch *Orchestrator) string {
	t.Helper()

	var authURL string
	orchWithRedirect := orch
	orchWithRedirect.redirect = func(u string) { authURL = u }

	if err := orch.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if authURL == "" {
		t.Fatal("Login never invoked the redirect function")
	}
	state := mustQueryParam(t, authURL, "state")
	return "https://app.example.org/callback?code=good-code&state=" + state
}

func TestInitializeWithoutTokens(t *testing.T) {
	orch, _, _, closeFn := newAuthStack(t, true)
	defer closeFn()

	orch.Initialize(context.Background(), "https://app.example.org/")

	s := orch.CurrentState()
	if s.IsAuthenticated || s.IsLoading || s.Error != "" {
		t.Errorf("state = %+v, want zero Unauthenticated state", s)
	}
}

func TestFullLoginHandshake(t *testing.T) {
	orch, tokens, _, closeFn := newAuthStack(t, true)
	defer closeFn()

	var transitions []models.AuthState
	orch.Subscribe(func(s models.AuthState) { transitions = append(transitions, s) })

	callback := completeLogin(t, orch)
	if !orch.HandleCallback(context.Background(), callback) {
		t.Fatalf("HandleCallback = false, state = %+v", orch.CurrentState())
	}

	s := orch.CurrentState()
	if !s.IsAuthenticated || s.User == nil || !s.User.IsAdmin || s.User.Email != "vol@example.org" {
		t.Errorf("state = %+v", s)
	}
	if !tokens.HasValidToken() {
		t.Error("token manager holds no valid token after the handshake")
	}

	// Every transition must preserve: authenticated implies admin user.
	for _, tr := range transitions {
		if tr.IsAuthenticated && (tr.User == nil || !tr.User.IsAdmin) {
			t.Errorf("broken invariant in transition %+v", tr)
		}
	}
	// The handshake passes through at least one loading state.
	sawLoading := false
	for _, tr := range transitions {
		if tr.IsLoading {
			sawLoading = true
		}
	}
	if !sawLoading {
		t.Error("handshake never broadcast a loading state")
	}
}

func TestNonAdminRejectedWithClearedTokens(t *testing.T) {
	orch, tokens, _, closeFn := newAuthStack(t, false)
	defer closeFn()

	callback := completeLogin(t, orch)
	if orch.HandleCallback(context.Background(), callback) {
		t.Fatal("HandleCallback = true for a non-admin account")
	}

	s := orch.CurrentState()
	if s.IsAuthenticated {
		t.Error("non-admin ended authenticated")
	}
	// Pinned literal: the UI matches on this exact wording, en dash included.
	if s.Error != "Access denied – Admin privileges required" {
		t.Errorf("error = %q, want %q", s.Error, "Access denied – Admin privileges required")
	}
	if tokens.HasValidToken() || tokens.RefreshToken() != "" {
		t.Error("tokens survived a non-admin rejection")
	}
}

func TestLoginWithDebugClientIDFailsFast(t *testing.T) {
	storage := NewMemorySessionStorage()
	client := NewClient(ClientConfig{
		ClientID:     "debug-client-id",
		RedirectURI:  "https://app.example.org/callback",
		ProxyBaseURL: "http://127.0.0.1:1",
	}, storage)
	tokens := NewTokenManager("http://127.0.0.1:1", WithoutAutoRefresh())

	redirected := false
	orch := NewOrchestrator(client, tokens, WithRedirect(func(string) { redirected = true }))

	err := orch.Login(context.Background())
	if err == nil {
		t.Fatal("Login succeeded with the debug client id")
	}
	if redirected {
		t.Error("redirect happened despite the setup failure")
	}
	if s := orch.CurrentState(); s.Error == "" || s.IsAuthenticated {
		t.Errorf("state = %+v, want error state", s)
	}
}

func TestLogoutAlwaysLandsUnauthenticated(t *testing.T) {
	orch, tokens, _, closeFn := newAuthStack(t, true)
	defer closeFn()

	callback := completeLogin(t, orch)
	if !orch.HandleCallback(context.Background(), callback) {
		t.Fatal("handshake failed")
	}

	orch.Logout(context.Background())

	s := orch.CurrentState()
	if s.IsAuthenticated || s.IsLoading || s.Error != "" {
		t.Errorf("state = %+v, want Unauthenticated", s)
	}
	if tokens.HasValidToken() {
		t.Error("tokens survived logout")
	}
}

func TestInitializeWithValidTokenRevalidates(t *testing.T) {
	orch, tokens, _, closeFn := newAuthStack(t, true)
	defer closeFn()

	tokens.StoreTokens("at-1", "rt-1", 3600, "Bearer", "")
	orch.Initialize(context.Background(), "https://app.example.org/")

	s := orch.CurrentState()
	if !s.IsAuthenticated || s.User == nil || s.User.Email != "vol@example.org" {
		t.Errorf("state = %+v", s)
	}
}
