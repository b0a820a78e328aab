package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adeeb897/soup-kitchen-scheduler/dto"
	"github.com/adeeb897/soup-kitchen-scheduler/models"
	"github.com/adeeb897/soup-kitchen-scheduler/store"
)

// timeFilter parses an RFC 3339 query parameter, signalling a bad value via
// the second return.
func timeFilter(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", name+" must be RFC 3339")
		return nil, false
	}
	return &t, true
}

// HandleListShiftsGin lists shifts, optionally bounded by from/to.
func (s *Server) HandleListShiftsGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	from, ok := timeFilter(c, "from")
	if !ok {
		return
	}
	to, ok := timeFilter(c, "to")
	if !ok {
		return
	}

	shifts, err := s.shifts.List(c.Request.Context(), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("list shifts failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not list shifts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": dto.FromShifts(shifts)})
}

// HandleGetShiftGin returns one shift with its signups.
func (s *Server) HandleGetShiftGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	shift, err := s.shifts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrShiftNotFound) {
			jsonError(c, http.StatusNotFound, "not_found", "shift not found")
			return
		}
		s.logger.Error().Err(err).Msg("get shift failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not load shift")
		return
	}
	c.JSON(http.StatusOK, dto.FromShift(shift))
}

// HandleCreateShiftGin creates a shift. Admin only.
func (s *Server) HandleCreateShiftGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	var body dto.ShiftRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	shift := &models.Shift{
		Date:          body.Date,
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		MaxVolunteers: body.MaxVolunteers,
		Notes:         body.Notes,
	}
	if err := s.shifts.Create(c.Request.Context(), shift); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.logger.Info().Str("shift_id", shift.ID).Str("admin", adminEmail(c)).Msg("shift created")
	c.JSON(http.StatusCreated, dto.FromShift(shift))
}

// HandleUpdateShiftGin rewrites a shift's mutable fields. Admin only.
func (s *Server) HandleUpdateShiftGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	var body dto.ShiftRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	shift := &models.Shift{
		ID:            c.Param("id"),
		Date:          body.Date,
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		MaxVolunteers: body.MaxVolunteers,
		Notes:         body.Notes,
	}
	if err := s.shifts.Update(c.Request.Context(), shift); err != nil {
		if errors.Is(err, store.ErrShiftNotFound) {
			jsonError(c, http.StatusNotFound, "not_found", "shift not found")
			return
		}
		jsonError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	updated, err := s.shifts.Get(c.Request.Context(), shift.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("reload updated shift failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not load shift")
		return
	}
	c.JSON(http.StatusOK, dto.FromShift(updated))
}

// HandleDeleteShiftGin removes a shift and its signups. Admin only.
func (s *Server) HandleDeleteShiftGin(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}

	if err := s.shifts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrShiftNotFound) {
			jsonError(c, http.StatusNotFound, "not_found", "shift not found")
			return
		}
		s.logger.Error().Err(err).Msg("delete shift failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not delete shift")
		return
	}

	s.logger.Info().Str("shift_id", c.Param("id")).Str("admin", adminEmail(c)).Msg("shift deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
