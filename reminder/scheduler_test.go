package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adeeb897/soup-kitchen-scheduler/email"
	"github.com/adeeb897/soup-kitchen-scheduler/models"
	"github.com/adeeb897/soup-kitchen-scheduler/utils/retry"
)

type fakeSignupSource struct {
	mu     sync.Mutex
	rows   []models.SignupWithShift
	marked map[string]time.Time
}

func newFakeSignupSource(rows ...models.SignupWithShift) *fakeSignupSource {
	return &fakeSignupSource{rows: rows, marked: make(map[string]time.Time)}
}

func (f *fakeSignupSource) ListUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]models.SignupWithShift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SignupWithShift
	for _, r := range f.rows {
		if _, done := f.marked[r.ID]; done {
			continue
		}
		if r.ShiftDate.Before(from) || r.ShiftDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSignupSource) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked[id] = at
	return nil
}

type recordingSender struct {
	email.NoOpSender
	mu        sync.Mutex
	reminders []email.ShiftEmailData
	failFor   map[string]error
}

func (r *recordingSender) SendShiftReminder(ctx context.Context, data email.ShiftEmailData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[data.To]; ok {
		return err
	}
	r.reminders = append(r.reminders, data)
	return nil
}

func (r *recordingSender) sentTo() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.reminders {
		out = append(out, d.To)
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func rowFor(id, to string, startsAt time.Time) models.SignupWithShift {
	return models.SignupWithShift{
		Signup: models.Signup{ID: id, ShiftID: "shift-" + id, Name: "Vol " + id, Email: to},
		ShiftDate: time.Date(startsAt.Year(), startsAt.Month(), startsAt.Day(),
			0, 0, 0, 0, time.UTC),
		ShiftStartTime: startsAt.Format("15:04"),
		ShiftEndTime:   startsAt.Add(3 * time.Hour).Format("15:04"),
	}
}

func TestCycleSendsDueRemindersOnce(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	src := newFakeSignupSource(
		rowFor("1", "a@example.org", now.Add(20*time.Hour)),
		rowFor("2", "b@example.org", now.Add(23*time.Hour)),
		rowFor("3", "c@example.org", now.Add(72*time.Hour)), // too far out
	)
	sender := &recordingSender{}

	s := New(src, sender,
		WithClock(fixedClock(now)),
		WithRetryConfig(fastRetry()),
		WithBranding("Soup Kitchen Scheduler", ""),
	)

	s.RunCycle(context.Background())

	sent := sender.sentTo()
	if len(sent) != 2 || sent[0] != "a@example.org" || sent[1] != "b@example.org" {
		t.Errorf("sent = %v", sent)
	}
	if _, ok := src.marked["1"]; !ok {
		t.Error("signup 1 not marked after successful send")
	}
	if _, ok := src.marked["3"]; ok {
		t.Error("far-future signup was marked")
	}

	// A second cycle must not resend.
	s.RunCycle(context.Background())
	if got := sender.sentTo(); len(got) != 2 {
		t.Errorf("resent reminders: %v", got)
	}
}

func TestFailedSendDoesNotAbortBatchAndRetriesNextCycle(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	src := newFakeSignupSource(
		rowFor("1", "broken@example.org", now.Add(20*time.Hour)),
		rowFor("2", "ok@example.org", now.Add(20*time.Hour)),
	)
	sender := &recordingSender{failFor: map[string]error{"broken@example.org": errors.New("smtp down")}}

	s := New(src, sender, WithClock(fixedClock(now)), WithRetryConfig(fastRetry()))

	s.RunCycle(context.Background())

	if got := sender.sentTo(); len(got) != 1 || got[0] != "ok@example.org" {
		t.Errorf("sent = %v", got)
	}
	if _, ok := src.marked["1"]; ok {
		t.Error("failed send was marked as sent")
	}

	// Once the sender recovers, the next cycle picks the failure up.
	sender.mu.Lock()
	sender.failFor = nil
	sender.mu.Unlock()

	s.RunCycle(context.Background())
	if _, ok := src.marked["1"]; !ok {
		t.Error("recovered signup not sent on the next cycle")
	}
}

func TestLeaderGateSkipsCycle(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	src := newFakeSignupSource(rowFor("1", "a@example.org", now.Add(20*time.Hour)))
	sender := &recordingSender{}

	s := New(src, sender,
		WithClock(fixedClock(now)),
		WithRetryConfig(fastRetry()),
		WithLeaderGate(func() bool { return false }),
	)

	s.RunCycle(context.Background())
	if got := sender.sentTo(); len(got) != 0 {
		t.Errorf("non-leader sent reminders: %v", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	src := newFakeSignupSource()
	sender := &recordingSender{}
	s := New(src, sender, WithInterval(10*time.Millisecond), WithRetryConfig(fastRetry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
