package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// providerTimeout bounds every outbound call to Google.
const providerTimeout = 10 * time.Second

// errInvalidGrant is how the provider signals a dead refresh token or a bad
// authorization code.
type providerGrantError struct {
	status int
	body   string
}

func (e *providerGrantError) Error() string {
	return fmt.Sprintf("provider rejected grant (status %d): %s", e.status, e.body)
}

// GoogleTokens is the provider's token payload plus the decoded id_token
// email, when present.
type GoogleTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	TokenType    string
	Scope        string
	IDTokenEmail string
}

// GoogleUser is the userinfo projection the proxy needs.
type GoogleUser struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleProvider performs the server-side half of the OAuth flow: code
// exchange with the client secret, token refresh, userinfo lookup, and
// revocation. Endpoint URLs are injectable for tests.
type GoogleProvider struct {
	clientID     string
	clientSecret string

	tokenURL    string
	userinfoURL string
	revokeURL   string

	httpClient *http.Client
}

// GoogleProviderOption customizes a GoogleProvider.
type GoogleProviderOption func(*GoogleProvider)

// WithProviderEndpoints points the provider at alternative endpoint URLs.
func WithProviderEndpoints(tokenURL, userinfoURL, revokeURL string) GoogleProviderOption {
	return func(p *GoogleProvider) {
		p.tokenURL = tokenURL
		p.userinfoURL = userinfoURL
		p.revokeURL = revokeURL
	}
}

// NewGoogleProvider creates a provider with the given application
// credentials.
func NewGoogleProvider(clientID, clientSecret string, opts ...GoogleProviderOption) *GoogleProvider {
	p := &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     googleTokenURL,
		userinfoURL:  googleUserinfoURL,
		revokeURL:    googleRevokeURL,
		httpClient:   &http.Client{Timeout: providerTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether application credentials are present.
func (p *GoogleProvider) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

func (p *GoogleProvider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: p.tokenURL,
		},
	}
}

// clientContext makes x/oauth2 use our bounded HTTP client.
func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Exchange trades an authorization code plus PKCE verifier for tokens.
func (p *GoogleProvider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*GoogleTokens, error) {
	tok, err := p.oauthConfig(redirectURI).Exchange(p.clientContext(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &providerGrantError{status: re.Response.StatusCode, body: string(re.Body)}
		}
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	return p.tokensFromOAuth2(tok), nil
}

// Refresh trades a refresh token for a new access token.
func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*GoogleTokens, error) {
	src := p.oauthConfig("").TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &providerGrantError{status: re.Response.StatusCode, body: string(re.Body)}
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	tokens := p.tokensFromOAuth2(tok)
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// Userinfo fetches the profile for an access token. A rejected token yields
// errInvalidToken.
func (p *GoogleProvider) Userinfo(ctx context.Context, accessToken string) (*GoogleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, string(b))
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if user.Email == "" {
		return nil, fmt.Errorf("userinfo response carried no email")
	}
	return &user, nil
}

// Revoke invalidates a token at the provider. Best-effort by contract: the
// caller decides whether a failure matters.
func (p *GoogleProvider) Revoke(ctx context.Context, token string) error {
	form := url.Values{}
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation returned status %d", resp.StatusCode)
	}
	return nil
}

// tokensFromOAuth2 flattens an oauth2.Token, pulling the email claim out of
// the id_token when one rides along. The claims are parsed without signature
// verification: the token arrived over our own TLS exchange with the
// provider, which is the trust anchor here.
func (p *GoogleProvider) tokensFromOAuth2(tok *oauth2.Token) *GoogleTokens {
	out := &GoogleTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int(time.Until(tok.Expiry) / time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
			if email, ok := claims["email"].(string); ok {
				out.IDTokenEmail = email
			}
		}
	}
	return out
}
