package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

var shiftTestCounter int64 = time.Now().UnixNano()

func uniqueShiftTestID(prefix string) string {
	shiftTestCounter++
	return fmt.Sprintf("%s-%d", prefix, shiftTestCounter)
}

func cleanupShiftTestData(s *ShiftStore, shiftID string) {
	s.DB.Exec(`DELETE FROM signups WHERE shift_id = ?`, shiftID)
	s.DB.Exec(`DELETE FROM shifts WHERE id = ?`, shiftID)
}

func testShift(id string) *models.Shift {
	return &models.Shift{
		ID:            id,
		Date:          time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		StartTime:     "11:00",
		EndTime:       "14:00",
		MaxVolunteers: 4,
		Notes:         "lunch service",
	}
}

func TestShiftStore_CreateAndGet(t *testing.T) {
	gormDB, err := getTestGormDB()
	if err != nil {
		t.Skip("No database connection available")
	}
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	s := NewShiftStore(gormDB)
	ctx := context.Background()

	id := uniqueShiftTestID("shift")
	defer cleanupShiftTestData(s, id)

	if err := s.Create(ctx, testShift(id)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.StartTime != "11:00" || got.EndTime != "14:00" {
		t.Errorf("times = %s-%s, want 11:00-14:00", got.StartTime, got.EndTime)
	}
	if got.MaxVolunteers != 4 {
		t.Errorf("MaxVolunteers = %d, want 4", got.MaxVolunteers)
	}
	if len(got.Signups) != 0 {
		t.Errorf("new shift should have no signups, got %d", len(got.Signups))
	}
}

func TestShiftStore_GetMissing(t *testing.T) {
	gormDB, err := getTestGormDB()
	if err != nil {
		t.Skip("No database connection available")
	}
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	s := NewShiftStore(gormDB)
	if _, err := s.Get(context.Background(), uniqueShiftTestID("missing")); !errors.Is(err, ErrShiftNotFound) {
		t.Errorf("Get missing shift = %v, want ErrShiftNotFound", err)
	}
}

func TestShiftStore_UpdateAndDelete(t *testing.T) {
	gormDB, err := getTestGormDB()
	if err != nil {
		t.Skip("No database connection available")
	}
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	s := NewShiftStore(gormDB)
	ctx := context.Background()

	id := uniqueShiftTestID("shift")
	defer cleanupShiftTestData(s, id)

	shift := testShift(id)
	if err := s.Create(ctx, shift); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	shift.MaxVolunteers = 6
	shift.Notes = "extra hands needed"
	if err := s.Update(ctx, shift); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MaxVolunteers != 6 || got.Notes != "extra hands needed" {
		t.Errorf("update not applied: %+v", got)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrShiftNotFound) {
		t.Errorf("Get after Delete = %v, want ErrShiftNotFound", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrShiftNotFound) {
		t.Errorf("second Delete = %v, want ErrShiftNotFound", err)
	}
}

func TestShiftStore_DeleteCascadesSignups(t *testing.T) {
	gormDB, err := getTestGormDB()
	if err != nil {
		t.Skip("No database connection available")
	}
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	shifts := NewShiftStore(gormDB)
	signups := NewSignupStore(gormDB)
	ctx := context.Background()

	id := uniqueShiftTestID("shift")
	defer cleanupShiftTestData(shifts, id)

	if err := shifts.Create(ctx, testShift(id)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	su := &models.Signup{ShiftID: id, Name: "Pat", Email: "pat@example.org"}
	if err := signups.Create(ctx, su); err != nil {
		t.Fatalf("signup Create failed: %v", err)
	}

	if err := shifts.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := signups.Get(ctx, su.ID); !errors.Is(err, ErrSignupNotFound) {
		t.Errorf("signup should be gone after shift delete, got %v", err)
	}
}
