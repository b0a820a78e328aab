package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// adminEmailKey is the context key handlers read the caller's identity from.
const adminEmailKey = "admin_email"

// RequireAdmin validates the bearer token against the provider and checks the
// resulting email against the allowlist. A missing or rejected token answers
// 401; a valid identity outside the allowlist answers 403.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.google.Configured() {
			jsonError(c, http.StatusInternalServerError, "configuration_error",
				"google client credentials are not configured")
			c.Abort()
			return
		}

		token := bearerToken(c)
		if token == "" {
			jsonError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			c.Abort()
			return
		}

		user, err := s.google.Userinfo(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, errInvalidToken) {
				jsonError(c, http.StatusUnauthorized, "invalid_token", "the access token was rejected")
			} else {
				s.logger.Error().Err(err).Msg("admin check userinfo lookup failed")
				jsonError(c, http.StatusInternalServerError, "server_error", "could not verify the caller")
			}
			c.Abort()
			return
		}

		if !s.cfg.IsAdminEmail(user.Email) {
			jsonError(c, http.StatusForbidden, "forbidden", "admin privileges required")
			c.Abort()
			return
		}

		c.Set(adminEmailKey, user.Email)
		c.Next()
	}
}

// adminEmail returns the identity set by RequireAdmin, empty outside the
// admin group.
func adminEmail(c *gin.Context) string {
	v, _ := c.Get(adminEmailKey)
	email, _ := v.(string)
	return email
}
