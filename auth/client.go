package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// debugClientID is the development placeholder some configs ship with; login
// treats it the same as an empty client id.
const debugClientID = "debug-client-id"

const defaultGoogleAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

// defaultHTTPTimeout bounds every call to the backend proxy.
const defaultHTTPTimeout = 10 * time.Second

// ClientConfig configures the OAuth client.
type ClientConfig struct {
	ClientID     string
	RedirectURI  string
	ProxyBaseURL string
	AuthURL      string
	Scopes       []string
}

// CallbackResult carries the values recovered from a provider callback,
// ready for the token exchange.
type CallbackResult struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
}

// Client drives the authorization-code flow with PKCE: it builds the
// provider authorization URL, persists the pending state through the backend
// proxy, and recovers it when the provider redirects back.
type Client struct {
	cfg        ClientConfig
	storage    SessionStorage
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the proxy HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger overrides the client's logger.
func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an OAuth client backed by the given session storage.
func NewClient(cfg ClientConfig, storage SessionStorage, opts ...ClientOption) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultGoogleAuthURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}

	c := &Client{
		cfg:        cfg,
		storage:    storage,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildAuthorizationURL generates a fresh PKCE pair and state, persists them
// through the backend state store, remembers the returned session id, and
// returns the provider authorization URL to navigate to.
func (c *Client) BuildAuthorizationURL(ctx context.Context) (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientID == debugClientID {
		return "", ErrMissingClientID
	}

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", err
	}
	state, err := GenerateState()
	if err != nil {
		return "", err
	}

	sessionID, err := c.storeAuthState(ctx, state, verifier)
	if err != nil {
		return "", fmt.Errorf("failed to persist auth state: %w", err)
	}
	c.storage.Set(sessionIDKey, sessionID)

	oc := oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: c.cfg.RedirectURI,
		Scopes:      c.cfg.Scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: c.cfg.AuthURL},
	}

	authURL := oc.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", CodeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	return authURL, nil
}

// IsCallbackURL reports whether the URL looks like a provider callback: its
// query carries both code and state.
func (c *Client) IsCallbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get("code") != "" && q.Get("state") != ""
}

// ProcessCallback validates a provider callback URL and recovers the code
// verifier and redirect URI stored before the redirect. The session-storage
// entry is cleared on every path.
func (c *Client) ProcessCallback(ctx context.Context, raw string) (*CallbackResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	q := u.Query()

	if errCode := q.Get("error"); errCode != "" {
		c.storage.Delete(sessionIDKey)
		return nil, &ProviderError{Code: errCode, Description: q.Get("error_description")}
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		c.storage.Delete(sessionIDKey)
		return nil, fmt.Errorf("callback is missing code or state parameter")
	}

	sessionID, ok := c.storage.Get(sessionIDKey)
	if !ok || sessionID == "" {
		return nil, ErrSessionLost
	}
	c.storage.Delete(sessionIDKey)

	pending, err := c.retrieveAuthState(ctx, sessionID, state)
	if err != nil {
		return nil, err
	}

	// Retrieval consumes the entry server-side; cleanup is belt and
	// braces and must not fail the flow.
	c.cleanupAuthState(ctx, sessionID)

	return &CallbackResult{
		Code:         code,
		CodeVerifier: pending.CodeVerifier,
		RedirectURI:  pending.RedirectURI,
	}, nil
}

// TokenResponse is the backend proxy's token payload. ExpiresIn is kept raw
// so the token manager can apply its own expiry margin.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// ExchangeCodeForTokens trades the authorization code plus verifier for
// tokens via the backend proxy, which holds the client secret.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, code, verifier, redirectURI string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{
		"code":          code,
		"code_verifier": verifier,
		"redirect_uri":  redirectURI,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProxyBaseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var payload TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &payload, nil
}

func (c *Client) storeAuthState(ctx context.Context, state, verifier string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"state":         state,
		"code_verifier": verifier,
		"redirect_uri":  c.cfg.RedirectURI,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProxyBaseURL+"/auth/state?action=store", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("state store returned status %d: %s", resp.StatusCode, string(b))
	}

	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode state store response: %w", err)
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("state store returned an empty session id")
	}
	return payload.SessionID, nil
}

func (c *Client) retrieveAuthState(ctx context.Context, sessionID, state string) (*models.PendingAuthState, error) {
	q := url.Values{}
	q.Set("action", "retrieve")
	q.Set("session_id", sessionID)
	q.Set("state", state)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProxyBaseURL+"/auth/state?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrStateNotFound
	case http.StatusGone:
		return nil, ErrStateExpired
	case http.StatusForbidden:
		return nil, ErrStateRejected
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("state retrieve returned status %d: %s", resp.StatusCode, string(b))
	}

	var payload struct {
		CodeVerifier string `json:"code_verifier"`
		RedirectURI  string `json:"redirect_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode state retrieve response: %w", err)
	}

	return &models.PendingAuthState{
		SessionID:    sessionID,
		State:        state,
		CodeVerifier: payload.CodeVerifier,
		RedirectURI:  payload.RedirectURI,
	}, nil
}

func (c *Client) cleanupAuthState(ctx context.Context, sessionID string) {
	q := url.Values{}
	q.Set("action", "cleanup")
	q.Set("session_id", sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.ProxyBaseURL+"/auth/state?"+q.Encode(), nil)
	if err != nil {
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("auth state cleanup failed")
		return
	}
	resp.Body.Close()
}
