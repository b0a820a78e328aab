package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingClientID is returned when login starts without a usable
	// OAuth client id configured.
	ErrMissingClientID = errors.New("oauth client id is not configured")

	// ErrSessionLost is returned when a callback arrives but no pending
	// session id is held in session storage.
	ErrSessionLost = errors.New("authentication session was lost, please try logging in again")

	// ErrNoRefreshToken is returned when a refresh is requested without a
	// stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrAlreadyRefreshing guards against interleaved refresh attempts.
	ErrAlreadyRefreshing = errors.New("token refresh already in progress")

	// ErrNotAuthenticated is returned by operations that require a valid
	// access token when none is held.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrStateNotFound means the pending auth entry was absent or already
	// consumed server-side.
	ErrStateNotFound = errors.New("pending authentication state not found")

	// ErrStateExpired means the pending auth entry outlived its TTL.
	ErrStateExpired = errors.New("pending authentication state expired")

	// ErrStateRejected covers the server's generic 403 on state retrieval.
	ErrStateRejected = errors.New("pending authentication state rejected")
)

// ProviderError carries an OAuth error returned by the provider on the
// callback URL (e.g. access_denied).
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth provider error %q: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("oauth provider error %q", e.Code)
}

// ExchangeError carries a non-2xx response from the backend token proxy.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}
