package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewGinEngine builds the router: the auth proxy under /auth, the scheduling
// API under /api/v1, and a health probe.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(s.requestLogMiddleware())

	// Auth proxy. The client secret never leaves these handlers.
	r.POST("/auth/token", s.HandleTokenExchangeGin)
	r.POST("/auth/refresh", s.HandleTokenRefreshGin)
	r.POST("/auth/validate", s.HandleValidateGin)
	r.POST("/auth/logout", s.HandleLogoutGin)

	// Pending-login state store. One endpoint, dispatched on ?action=.
	r.POST("/auth/state", s.HandleAuthStateGin)
	r.GET("/auth/state", s.HandleAuthStateGin)
	r.DELETE("/auth/state", s.HandleAuthStateGin)

	// Public scheduling API.
	r.GET("/api/v1/shifts", s.HandleListShiftsGin)
	r.GET("/api/v1/shifts/:id", s.HandleGetShiftGin)
	r.POST("/api/v1/shifts/:id/signups", s.HandleCreateSignupGin)
	r.DELETE("/api/v1/signups/:id", s.HandleDeleteSignupGin)

	// Admin-only mutations.
	adminGroup := r.Group("/api/v1")
	adminGroup.Use(s.RequireAdmin())
	adminGroup.POST("/shifts", s.HandleCreateShiftGin)
	adminGroup.PUT("/shifts/:id", s.HandleUpdateShiftGin)
	adminGroup.DELETE("/shifts/:id", s.HandleDeleteShiftGin)
	adminGroup.POST("/email/send", s.HandleSendEmailGin)

	r.GET("/healthz", s.HandleHealthGin)

	return r
}

// jsonError writes the {error, error_description} envelope every handler uses.
func jsonError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}

// requireDB answers 501 when no database is configured, so the scheduling
// endpoints degrade cleanly instead of dereferencing a nil store.
func (s *Server) requireDB(c *gin.Context) bool {
	if s.db == nil {
		jsonError(c, http.StatusNotImplemented, "not_implemented",
			"set SK_DATABASE__DSN to enable shift scheduling")
		return false
	}
	return true
}

// requirePendingStore mirrors requireDB for the pending-auth store.
func (s *Server) requirePendingStore(c *gin.Context) bool {
	if s.pending == nil {
		jsonError(c, http.StatusNotImplemented, "not_implemented",
			"no pending auth store configured")
		return false
	}
	return true
}

// requireGoogle rejects auth-proxy calls when the provider credentials are
// missing from config.
func (s *Server) requireGoogle(c *gin.Context) bool {
	if !s.google.Configured() {
		jsonError(c, http.StatusInternalServerError, "configuration_error",
			"google client credentials are not configured")
		return false
	}
	return true
}

func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		ev := s.logger.Debug()
		if status >= 500 {
			ev = s.logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Msg("request")
	}
}
