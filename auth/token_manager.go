package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// refreshMargin is subtracted from the provider's expires_in so a refresh
// fires before the token actually expires.
const refreshMargin = 5 * time.Minute

// TokenManager holds the current token pair, answers validity queries, and
// keeps exactly one refresh timer armed at the effective expiry.
type TokenManager struct {
	mu          sync.Mutex
	record      *models.TokenRecord
	refreshing  bool
	timer       *time.Timer
	subscribers []func(authenticated bool)

	proxyBaseURL string
	httpClient   *http.Client
	now          func() time.Time
	logger       zerolog.Logger
	autoRefresh  bool
}

// TokenManagerOption customizes a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithTokenClock injects the clock used for expiry checks and timer delays.
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(tm *TokenManager) { tm.now = now }
}

// WithTokenHTTPClient overrides the proxy HTTP client.
func WithTokenHTTPClient(hc *http.Client) TokenManagerOption {
	return func(tm *TokenManager) { tm.httpClient = hc }
}

// WithTokenLogger overrides the manager's logger.
func WithTokenLogger(l zerolog.Logger) TokenManagerOption {
	return func(tm *TokenManager) { tm.logger = l }
}

// WithoutAutoRefresh disables the background refresh timer; refreshes then
// only happen through explicit RefreshAccessToken calls.
func WithoutAutoRefresh() TokenManagerOption {
	return func(tm *TokenManager) { tm.autoRefresh = false }
}

// NewTokenManager creates a token manager talking to the backend proxy at
// proxyBaseURL.
func NewTokenManager(proxyBaseURL string, opts ...TokenManagerOption) *TokenManager {
	tm := &TokenManager{
		proxyBaseURL: proxyBaseURL,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		now:          time.Now,
		logger:       zerolog.Nop(),
		autoRefresh:  true,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Subscribe registers a listener notified synchronously whenever the token
// set changes. The bool reports whether a valid token is now held.
func (tm *TokenManager) Subscribe(fn func(authenticated bool)) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.subscribers = append(tm.subscribers, fn)
}

// StoreTokens replaces the held token pair wholesale. The effective expiry
// is now + expiresIn minus a five-minute margin, and the refresh timer is
// rescheduled to that instant.
func (tm *TokenManager) StoreTokens(accessToken, refreshToken string, expiresIn int, tokenType, scope string) {
	tm.mu.Lock()
	tm.record = &models.TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tm.now().Add(time.Duration(expiresIn)*time.Second - refreshMargin),
		TokenType:    tokenType,
		Scope:        scope,
	}
	tm.scheduleRefreshLocked()
	subs := append([]func(bool){}, tm.subscribers...)
	tm.mu.Unlock()

	for _, fn := range subs {
		fn(true)
	}
}

// AccessToken returns the held access token, or "" when none is held or the
// effective expiry has passed.
func (tm *TokenManager) AccessToken() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.record == nil || !tm.now().Before(tm.record.ExpiresAt) {
		return ""
	}
	return tm.record.AccessToken
}

// HasValidToken reports whether a non-expired access token is held.
func (tm *TokenManager) HasValidToken() bool {
	return tm.AccessToken() != ""
}

// RefreshToken returns the held refresh token, if any.
func (tm *TokenManager) RefreshToken() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.record == nil {
		return ""
	}
	return tm.record.RefreshToken
}

// RefreshAccessToken trades the refresh token for a new access token via the
// backend proxy. Only one refresh may be in flight; a second caller gets
// ErrAlreadyRefreshing. A failed refresh clears all tokens.
func (tm *TokenManager) RefreshAccessToken(ctx context.Context) error {
	tm.mu.Lock()
	if tm.record == nil || tm.record.RefreshToken == "" {
		tm.mu.Unlock()
		return ErrNoRefreshToken
	}
	if tm.refreshing {
		tm.mu.Unlock()
		return ErrAlreadyRefreshing
	}
	tm.refreshing = true
	refreshToken := tm.record.RefreshToken
	tm.mu.Unlock()

	defer func() {
		tm.mu.Lock()
		tm.refreshing = false
		tm.mu.Unlock()
	}()

	resp, err := tm.postRefresh(ctx, refreshToken)
	if err != nil {
		tm.logger.Warn().Err(err).Msg("token refresh failed, clearing tokens")
		tm.ClearTokens()
		return err
	}

	// Providers usually omit the refresh token on refresh responses; keep
	// the one we already hold.
	newRefresh := resp.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	tm.StoreTokens(resp.AccessToken, newRefresh, resp.ExpiresIn, resp.TokenType, resp.Scope)
	return nil
}

// ValidateToken asks the backend proxy to validate the held access token
// against Google and the admin allowlist.
func (tm *TokenManager) ValidateToken(ctx context.Context) (*models.UserInfo, error) {
	token := tm.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	body, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.proxyBaseURL+"/auth/validate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusForbidden {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token validation returned status %d: %s", resp.StatusCode, string(b))
	}

	var payload struct {
		Success bool `json:"success"`
		IsAdmin bool `json:"is_admin"`
		User    struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode validation response: %w", err)
	}

	return &models.UserInfo{
		Email:   payload.User.Email,
		Name:    payload.User.Name,
		Picture: payload.User.Picture,
		IsAdmin: payload.IsAdmin,
	}, nil
}

// Logout revokes the tokens through the backend proxy on a best-effort basis
// and always clears local state.
func (tm *TokenManager) Logout(ctx context.Context) {
	tm.mu.Lock()
	record := tm.record
	tm.mu.Unlock()

	if record != nil {
		body, err := json.Marshal(map[string]string{
			"access_token":  record.AccessToken,
			"refresh_token": record.RefreshToken,
		})
		if err == nil {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.proxyBaseURL+"/auth/logout", bytes.NewReader(body))
			if err == nil {
				req.Header.Set("Content-Type", "application/json")
				if resp, err := tm.httpClient.Do(req); err != nil {
					tm.logger.Debug().Err(err).Msg("logout revocation failed")
				} else {
					resp.Body.Close()
				}
			}
		}
	}

	tm.ClearTokens()
}

// ClearTokens cancels the refresh timer, drops the token record, and
// notifies subscribers.
func (tm *TokenManager) ClearTokens() {
	tm.mu.Lock()
	if tm.timer != nil {
		tm.timer.Stop()
		tm.timer = nil
	}
	tm.record = nil
	subs := append([]func(bool){}, tm.subscribers...)
	tm.mu.Unlock()

	for _, fn := range subs {
		fn(false)
	}
}

// scheduleRefreshLocked arms the one-shot refresh timer at the record's
// effective expiry, cancelling any prior timer. Callers hold tm.mu.
func (tm *TokenManager) scheduleRefreshLocked() {
	if tm.timer != nil {
		tm.timer.Stop()
		tm.timer = nil
	}
	if !tm.autoRefresh || tm.record == nil || tm.record.RefreshToken == "" {
		return
	}

	delay := tm.record.ExpiresAt.Sub(tm.now())
	if delay < 0 {
		delay = 0
	}

	tm.timer = time.AfterFunc(delay, func() {
		if err := tm.RefreshAccessToken(context.Background()); err != nil {
			tm.logger.Warn().Err(err).Msg("scheduled token refresh failed")
		}
	})
}

func (tm *TokenManager) postRefresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.proxyBaseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var payload TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	return &payload, nil
}
