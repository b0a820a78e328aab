package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName   = "sk_refresh_token"
	refreshCookiePath   = "/auth"
	refreshCookieMaxAge = 7 * 24 * 60 * 60
)

// setRefreshCookie parks the refresh token in an httpOnly cookie scoped to
// the auth proxy, out of reach of page scripts.
func setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, refreshCookieMaxAge, refreshCookiePath, "", true, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", true, true)
}

func tokenResponseBody(t *GoogleTokens) gin.H {
	return gin.H{
		"access_token":  t.AccessToken,
		"refresh_token": t.RefreshToken,
		"expires_in":    t.ExpiresIn,
		"token_type":    t.TokenType,
		"scope":         t.Scope,
	}
}

// HandleTokenExchangeGin trades an authorization code plus PKCE verifier for
// tokens. The client secret is attached here, server-side only.
func (s *Server) HandleTokenExchangeGin(c *gin.Context) {
	if !s.requireGoogle(c) {
		return
	}

	var body struct {
		Code         string `json:"code"`
		CodeVerifier string `json:"code_verifier"`
		RedirectURI  string `json:"redirect_uri"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if body.Code == "" || body.CodeVerifier == "" || body.RedirectURI == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "code, code_verifier and redirect_uri are required")
		return
	}

	tokens, err := s.google.Exchange(c.Request.Context(), body.Code, body.CodeVerifier, body.RedirectURI)
	if err != nil {
		var ge *providerGrantError
		if errors.As(err, &ge) {
			s.logger.Warn().Int("provider_status", ge.status).Msg("code exchange rejected")
			jsonError(c, http.StatusInternalServerError, "token_exchange_failed", "the provider rejected the authorization code")
			return
		}
		s.logger.Error().Err(err).Msg("code exchange failed")
		jsonError(c, http.StatusInternalServerError, "token_exchange_failed", "token exchange failed")
		return
	}

	if tokens.RefreshToken != "" {
		setRefreshCookie(c, tokens.RefreshToken)
	}
	c.JSON(http.StatusOK, tokenResponseBody(tokens))
}

// HandleTokenRefreshGin exchanges the refresh token for a fresh access token.
// The token is read from the httpOnly cookie when present, falling back to a
// JSON body for non-browser clients. An invalid grant clears the cookie so
// the browser stops replaying a dead token.
func (s *Server) HandleTokenRefreshGin(c *gin.Context) {
	if !s.requireGoogle(c) {
		return
	}

	refreshToken, _ := c.Cookie(refreshCookieName)
	if refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			refreshToken = body.RefreshToken
		}
	}
	if refreshToken == "" {
		jsonError(c, http.StatusUnauthorized, "invalid_grant", "no refresh token")
		return
	}

	tokens, err := s.google.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		var ge *providerGrantError
		if errors.As(err, &ge) {
			clearRefreshCookie(c)
			jsonError(c, http.StatusUnauthorized, "invalid_grant", "the refresh token is no longer valid")
			return
		}
		s.logger.Error().Err(err).Msg("token refresh failed")
		jsonError(c, http.StatusInternalServerError, "refresh_failed", "token refresh failed")
		return
	}

	setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, tokenResponseBody(tokens))
}

// HandleValidateGin checks an access token against the provider and the admin
// allowlist. A valid non-admin identity answers 403 with the user attached so
// the caller can show who was denied.
func (s *Server) HandleValidateGin(c *gin.Context) {
	if !s.requireGoogle(c) {
		return
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.AccessToken == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "access_token is required")
		return
	}

	user, err := s.google.Userinfo(c.Request.Context(), body.AccessToken)
	if err != nil {
		if errors.Is(err, errInvalidToken) {
			jsonError(c, http.StatusUnauthorized, "invalid_token", "the access token was rejected")
			return
		}
		s.logger.Error().Err(err).Msg("userinfo lookup failed")
		jsonError(c, http.StatusInternalServerError, "validation_failed", "could not validate the access token")
		return
	}

	isAdmin := s.cfg.IsAdminEmail(user.Email)
	status := http.StatusOK
	if !isAdmin {
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{
		"success":  isAdmin,
		"is_admin": isAdmin,
		"user": gin.H{
			"email":   user.Email,
			"name":    user.Name,
			"picture": user.Picture,
		},
	})
}

// HandleLogoutGin revokes whatever tokens it can reach and clears the refresh
// cookie. Revocation is best-effort: logout always answers 200.
func (s *Server) HandleLogoutGin(c *gin.Context) {
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&body)

	if body.AccessToken != "" {
		if err := s.google.Revoke(c.Request.Context(), body.AccessToken); err != nil {
			s.logger.Debug().Err(err).Msg("access token revocation failed")
		}
	}
	// Cookie-less clients send the refresh token in the body instead.
	refreshToken, _ := c.Cookie(refreshCookieName)
	if refreshToken == "" {
		refreshToken = body.RefreshToken
	}
	if refreshToken != "" {
		if err := s.google.Revoke(c.Request.Context(), refreshToken); err != nil {
			s.logger.Debug().Err(err).Msg("refresh token revocation failed")
		}
	}

	clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// bearerToken pulls the access token out of an Authorization header.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
