package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// SignupStore provides operations for shift signups.
type SignupStore struct {
	DB *gorm.DB
}

func NewSignupStore(db *gorm.DB) *SignupStore { return &SignupStore{DB: db} }

// Create claims a spot on a shift. The capacity check and insert run in one
// transaction; a full shift returns ErrShiftFull.
func (s *SignupStore) Create(ctx context.Context, signup *models.Signup) error {
	if strings.TrimSpace(signup.Name) == "" || strings.TrimSpace(signup.Email) == "" {
		return errors.New("name and email are required")
	}
	if signup.ID == "" {
		signup.ID = models.NewID()
	}
	now := time.Now().UTC()
	signup.CreatedAt = now
	signup.UpdatedAt = now

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE serializes concurrent signups per shift; without it two
		// transactions racing for the last spot both count max-1 and both
		// insert.
		var maxVolunteers int
		row := tx.Raw(`SELECT max_volunteers FROM shifts WHERE id = ? FOR UPDATE`, signup.ShiftID).Row()
		if err := row.Scan(&maxVolunteers); err != nil {
			return ErrShiftNotFound
		}
		var count int64
		if err := tx.Raw(`SELECT COUNT(*) FROM signups WHERE shift_id = ?`, signup.ShiftID).Scan(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxVolunteers) {
			return ErrShiftFull
		}
		return tx.Exec(
			`INSERT INTO signups(id, shift_id, name, email, phone, created_at, updated_at) VALUES(?,?,?,?,?,?,?)`,
			signup.ID, signup.ShiftID, signup.Name, signup.Email, signup.Phone, signup.CreatedAt, signup.UpdatedAt,
		).Error
	})
}

// Get returns a signup by id.
func (s *SignupStore) Get(ctx context.Context, id string) (*models.Signup, error) {
	var signup models.Signup
	if err := s.DB.WithContext(ctx).Raw(`SELECT * FROM signups WHERE id = ?`, id).Scan(&signup).Error; err != nil {
		return nil, err
	}
	if signup.ID == "" {
		return nil, ErrSignupNotFound
	}
	return &signup, nil
}

// Delete removes a signup. Unless asAdmin is set, the supplied email must
// match the one on record (case-insensitive), so a volunteer can only cancel
// their own spot.
func (s *SignupStore) Delete(ctx context.Context, id, email string, asAdmin bool) error {
	signup, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !asAdmin && !strings.EqualFold(signup.Email, email) {
		return ErrSignupNotFound
	}
	res := s.DB.WithContext(ctx).Exec(`DELETE FROM signups WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSignupNotFound
	}
	return nil
}

// ListByShift returns all signups for a shift in creation order.
func (s *SignupStore) ListByShift(ctx context.Context, shiftID string) ([]models.Signup, error) {
	var signups []models.Signup
	err := s.DB.WithContext(ctx).Raw(
		`SELECT * FROM signups WHERE shift_id = ? ORDER BY created_at`, shiftID,
	).Scan(&signups).Error
	return signups, err
}

// ListUpcomingUnreminded returns signups whose shift falls inside [from, to]
// and that have not yet received a reminder. The reminder scheduler calls this
// every cycle and re-derives the pending set from scratch.
func (s *SignupStore) ListUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]models.SignupWithShift, error) {
	var rows []models.SignupWithShift
	err := s.DB.WithContext(ctx).Raw(`
		SELECT su.*, sh.date AS shift_date, sh.start_time AS shift_start_time, sh.end_time AS shift_end_time
		FROM signups su
		JOIN shifts sh ON sh.id = su.shift_id
		WHERE su.reminder_sent_at IS NULL AND sh.date >= ? AND sh.date <= ?
		ORDER BY sh.date, sh.start_time
	`, from, to).Scan(&rows).Error
	return rows, err
}

// MarkReminderSent records a successful reminder send. Unsent rows are picked
// up again on the next cycle.
func (s *SignupStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	res := s.DB.WithContext(ctx).Exec(
		`UPDATE signups SET reminder_sent_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSignupNotFound
	}
	return nil
}
