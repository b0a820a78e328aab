package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

var (
	ErrShiftNotFound  = errors.New("shift not found")
	ErrSignupNotFound = errors.New("signup not found")
	ErrShiftFull      = errors.New("shift is full")
)

// ShiftStore provides operations for shifts.
type ShiftStore struct {
	DB *gorm.DB
}

func NewShiftStore(db *gorm.DB) *ShiftStore { return &ShiftStore{DB: db} }

// Create inserts a new shift; an empty ID is assigned.
func (s *ShiftStore) Create(ctx context.Context, shift *models.Shift) error {
	if shift.ID == "" {
		shift.ID = models.NewID()
	}
	if shift.MaxVolunteers <= 0 {
		return errors.New("max_volunteers must be positive")
	}
	now := time.Now().UTC()
	shift.CreatedAt = now
	shift.UpdatedAt = now
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO shifts(id, date, start_time, end_time, max_volunteers, notes, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		shift.ID, shift.Date, shift.StartTime, shift.EndTime, shift.MaxVolunteers, shift.Notes, shift.CreatedAt, shift.UpdatedAt,
	).Error
}

// Get returns a shift with its signups loaded.
func (s *ShiftStore) Get(ctx context.Context, id string) (*models.Shift, error) {
	var shift models.Shift
	err := s.DB.WithContext(ctx).Raw(`SELECT * FROM shifts WHERE id = ?`, id).Scan(&shift).Error
	if err != nil {
		return nil, err
	}
	if shift.ID == "" {
		return nil, ErrShiftNotFound
	}
	var signups []models.Signup
	if err := s.DB.WithContext(ctx).Raw(
		`SELECT * FROM signups WHERE shift_id = ? ORDER BY created_at`, id,
	).Scan(&signups).Error; err != nil {
		return nil, err
	}
	shift.Signups = signups
	return &shift, nil
}

// List returns shifts ordered by date, optionally bounded by [from, to], with
// signups loaded so callers can compute remaining capacity.
func (s *ShiftStore) List(ctx context.Context, from, to *time.Time) ([]models.Shift, error) {
	q := `SELECT * FROM shifts`
	var args []interface{}
	switch {
	case from != nil && to != nil:
		q += ` WHERE date >= ? AND date <= ?`
		args = append(args, *from, *to)
	case from != nil:
		q += ` WHERE date >= ?`
		args = append(args, *from)
	case to != nil:
		q += ` WHERE date <= ?`
		args = append(args, *to)
	}
	q += ` ORDER BY date, start_time`

	var shifts []models.Shift
	if err := s.DB.WithContext(ctx).Raw(q, args...).Scan(&shifts).Error; err != nil {
		return nil, err
	}
	if len(shifts) == 0 {
		return shifts, nil
	}

	ids := make([]string, 0, len(shifts))
	for _, sh := range shifts {
		ids = append(ids, sh.ID)
	}
	var signups []models.Signup
	if err := s.DB.WithContext(ctx).Raw(
		`SELECT * FROM signups WHERE shift_id IN (?) ORDER BY created_at`, ids,
	).Scan(&signups).Error; err != nil {
		return nil, err
	}
	byShift := make(map[string][]models.Signup, len(shifts))
	for _, su := range signups {
		byShift[su.ShiftID] = append(byShift[su.ShiftID], su)
	}
	for i := range shifts {
		shifts[i].Signups = byShift[shifts[i].ID]
	}
	return shifts, nil
}

// Update rewrites the mutable fields of a shift.
func (s *ShiftStore) Update(ctx context.Context, shift *models.Shift) error {
	if shift.MaxVolunteers <= 0 {
		return errors.New("max_volunteers must be positive")
	}
	shift.UpdatedAt = time.Now().UTC()
	res := s.DB.WithContext(ctx).Exec(
		`UPDATE shifts SET date = ?, start_time = ?, end_time = ?, max_volunteers = ?, notes = ?, updated_at = ? WHERE id = ?`,
		shift.Date, shift.StartTime, shift.EndTime, shift.MaxVolunteers, shift.Notes, shift.UpdatedAt, shift.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrShiftNotFound
	}
	return nil
}

// Delete removes a shift and its signups in one transaction.
func (s *ShiftStore) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM signups WHERE shift_id = ?`, id).Error; err != nil {
			return fmt.Errorf("delete signups: %w", err)
		}
		res := tx.Exec(`DELETE FROM shifts WHERE id = ?`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrShiftNotFound
		}
		return nil
	})
}
