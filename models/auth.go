package models

import (
	"time"
)

// PendingAuthState is the server-held half of an in-flight OAuth login: the CSRF
// state and PKCE verifier parked between the authorization redirect and the
// callback. Looked up exactly once; deleted on successful retrieval or by the
// TTL sweep.
type PendingAuthState struct {
	SessionID    string    `json:"session_id"`
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired reports whether the pending login has outlived its TTL.
func (p *PendingAuthState) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}

// TokenRecord holds the live credential set for one browser session. It exists
// only in volatile memory; ExpiresAt already includes the client-side safety
// margin, so a record past ExpiresAt must never be handed to a caller.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenType    string
	Scope        string
}

// UserInfo is the identity projection returned by the admin-validate endpoint.
type UserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// AuthState is the single UI-facing authentication state. IsAuthenticated true
// implies User != nil and User.IsAdmin true; an authenticated-but-not-admin
// principal is represented as an error, never as logged in.
type AuthState struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	IsLoading       bool      `json:"isLoading"`
	User            *UserInfo `json:"user"`
	Error           string    `json:"error,omitempty"`
}
