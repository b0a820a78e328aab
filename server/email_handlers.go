package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adeeb897/soup-kitchen-scheduler/email"
)

// HandleSendEmailGin relays a one-off email through the configured sender.
// Admin only; used for ad-hoc announcements to volunteers.
func (s *Server) HandleSendEmailGin(c *gin.Context) {
	var body struct {
		To       string `json:"to" binding:"required,email"`
		Subject  string `json:"subject" binding:"required"`
		TextBody string `json:"text_body"`
		HTMLBody string `json:"html_body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if body.TextBody == "" && body.HTMLBody == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "text_body or html_body is required")
		return
	}

	err := s.sender.SendEmail(c.Request.Context(), email.EmailData{
		To:       body.To,
		Subject:  body.Subject,
		TextBody: body.TextBody,
		HTMLBody: body.HTMLBody,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("admin", adminEmail(c)).Msg("email relay failed")
		jsonError(c, http.StatusBadGateway, "send_failed", "the email provider rejected the message")
		return
	}

	s.logger.Info().Str("admin", adminEmail(c)).Str("to", body.To).Msg("email relayed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleHealthGin reports process liveness plus the email provider in use.
func (s *Server) HandleHealthGin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"email_provider": string(s.sender.ProviderType()),
		"database":       s.db != nil,
	})
}
