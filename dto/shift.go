package dto

import (
	"time"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// ShiftRequest is the payload for creating or updating a shift.
type ShiftRequest struct {
	Date          time.Time `json:"date" binding:"required"`
	StartTime     string    `json:"start_time" binding:"required"`
	EndTime       string    `json:"end_time" binding:"required"`
	MaxVolunteers int       `json:"max_volunteers" binding:"required"`
	Notes         string    `json:"notes"`
}

// ShiftResponse represents a shift in API responses, with capacity derived
// from its signups.
type ShiftResponse struct {
	ID             string           `json:"id"`
	Date           time.Time        `json:"date"`
	StartTime      string           `json:"start_time"`
	EndTime        string           `json:"end_time"`
	MaxVolunteers  int              `json:"max_volunteers"`
	Notes          string           `json:"notes,omitempty"`
	SpotsRemaining int              `json:"spots_remaining"`
	Signups        []SignupResponse `json:"signups"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FromShift converts a models.Shift to ShiftResponse.
func FromShift(sh *models.Shift) ShiftResponse {
	remaining := sh.MaxVolunteers - len(sh.Signups)
	if remaining < 0 {
		remaining = 0
	}
	return ShiftResponse{
		ID:             sh.ID,
		Date:           sh.Date,
		StartTime:      sh.StartTime,
		EndTime:        sh.EndTime,
		MaxVolunteers:  sh.MaxVolunteers,
		Notes:          sh.Notes,
		SpotsRemaining: remaining,
		Signups:        FromSignups(sh.Signups),
		CreatedAt:      sh.CreatedAt,
		UpdatedAt:      sh.UpdatedAt,
	}
}

// FromShifts converts a slice of models.Shift to a slice of ShiftResponse.
func FromShifts(shifts []models.Shift) []ShiftResponse {
	responses := make([]ShiftResponse, len(shifts))
	for i := range shifts {
		responses[i] = FromShift(&shifts[i])
	}
	return responses
}

// SignupRequest is the payload for claiming a spot on a shift.
type SignupRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

// SignupResponse represents a signup in API responses.
type SignupResponse struct {
	ID        string    `json:"id"`
	ShiftID   string    `json:"shift_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromSignup converts a models.Signup to SignupResponse.
func FromSignup(su *models.Signup) SignupResponse {
	return SignupResponse{
		ID:        su.ID,
		ShiftID:   su.ShiftID,
		Name:      su.Name,
		Email:     su.Email,
		Phone:     su.Phone,
		CreatedAt: su.CreatedAt,
	}
}

// FromSignups converts a slice of models.Signup to a slice of SignupResponse.
func FromSignups(signups []models.Signup) []SignupResponse {
	responses := make([]SignupResponse, len(signups))
	for i := range signups {
		responses[i] = FromSignup(&signups[i])
	}
	return responses
}
