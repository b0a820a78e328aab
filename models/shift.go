package models

import (
	"time"
)

// Shift represents a single volunteer shift on the kitchen calendar.
type Shift struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	Date          time.Time `gorm:"column:date;not null" json:"date"`
	StartTime     string    `gorm:"column:start_time;not null" json:"start_time"` // "HH:MM", kitchen-local
	EndTime       string    `gorm:"column:end_time;not null" json:"end_time"`
	MaxVolunteers int       `gorm:"column:max_volunteers;not null" json:"max_volunteers"`
	Notes         string    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`

	Signups []Signup `gorm:"-" json:"signups,omitempty"`
}

func (Shift) TableName() string {
	return "shifts"
}

// StartsAt combines the shift date with its start time. The returned time is in
// UTC; callers that care about wall-clock display convert at the edge.
func (s *Shift) StartsAt() time.Time {
	t, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return s.Date
	}
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// Signup represents a volunteer claiming a spot on a shift.
type Signup struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	ShiftID        string     `gorm:"column:shift_id;not null" json:"shift_id"`
	Name           string     `gorm:"column:name;not null" json:"name"`
	Email          string     `gorm:"column:email;not null" json:"email"`
	Phone          string     `gorm:"column:phone" json:"phone,omitempty"`
	ReminderSentAt *time.Time `gorm:"column:reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Signup) TableName() string {
	return "signups"
}

// SignupWithShift is the join row consumed by the reminder scheduler.
type SignupWithShift struct {
	Signup
	ShiftDate      time.Time `gorm:"column:shift_date"`
	ShiftStartTime string    `gorm:"column:shift_start_time"`
	ShiftEndTime   string    `gorm:"column:shift_end_time"`
}

// ShiftStartsAt mirrors Shift.StartsAt for the joined row.
func (s *SignupWithShift) ShiftStartsAt() time.Time {
	t, err := time.Parse("15:04", s.ShiftStartTime)
	if err != nil {
		return s.ShiftDate
	}
	return time.Date(s.ShiftDate.Year(), s.ShiftDate.Month(), s.ShiftDate.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}
