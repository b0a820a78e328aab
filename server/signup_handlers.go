package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adeeb897/soup-kitchen-scheduler/dto"
	"github.com/adeeb897/soup-kitchen-scheduler/email"
	"github.com/adeeb897/soup-kitchen-scheduler/models"
	"github.com/adeeb897/soup-kitchen-scheduler/store"
)

// HandleCreateSignupGin claims a spot on a shift. Public: volunteers sign up
// without an account. The confirmation email goes out in the background and
// never fails the signup.
func (s *Server) HandleCreateSignupGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	var body dto.SignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	shiftID := c.Param("id")
	signup := &models.Signup{
		ShiftID: shiftID,
		Name:    body.Name,
		Email:   body.Email,
		Phone:   body.Phone,
	}
	if err := s.signups.Create(c.Request.Context(), signup); err != nil {
		switch {
		case errors.Is(err, store.ErrShiftNotFound):
			jsonError(c, http.StatusNotFound, "not_found", "shift not found")
		case errors.Is(err, store.ErrShiftFull):
			jsonError(c, http.StatusConflict, "shift_full", "this shift has no open spots")
		default:
			jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return
	}

	if shift, err := s.shifts.Get(c.Request.Context(), shiftID); err == nil {
		go s.sendConfirmation(shift, signup)
	}

	c.JSON(http.StatusCreated, dto.FromSignup(signup))
}

func (s *Server) sendConfirmation(shift *models.Shift, signup *models.Signup) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.sender.SendSignupConfirmation(ctx, email.ShiftEmailData{
		To:        signup.Email,
		Name:      signup.Name,
		ShiftDate: shift.Date.Format("Monday, January 2, 2006"),
		StartTime: shift.StartTime,
		EndTime:   shift.EndTime,
		Notes:     shift.Notes,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("signup_id", signup.ID).Msg("confirmation email failed")
	}
}

// HandleDeleteSignupGin cancels a signup. A volunteer cancels their own spot
// by supplying the email used to sign up; an admin bearer token bypasses the
// match. A non-matching email answers 404 rather than confirming the signup
// exists.
func (s *Server) HandleDeleteSignupGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	callerEmail := c.Query("email")
	asAdmin := false
	if token := bearerToken(c); token != "" && s.google.Configured() {
		if user, err := s.google.Userinfo(c.Request.Context(), token); err == nil && s.cfg.IsAdminEmail(user.Email) {
			asAdmin = true
		}
	}
	if !asAdmin && callerEmail == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := s.signups.Delete(c.Request.Context(), c.Param("id"), callerEmail, asAdmin); err != nil {
		if errors.Is(err, store.ErrSignupNotFound) {
			jsonError(c, http.StatusNotFound, "not_found", "signup not found")
			return
		}
		s.logger.Error().Err(err).Msg("delete signup failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not delete signup")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
