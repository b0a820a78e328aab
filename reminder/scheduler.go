// Package reminder sends day-before shift reminders on a fixed interval.
// Each cycle re-derives the pending set from current signup data, so there is
// no persistent schedule to drift out of sync.
package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeeb897/soup-kitchen-scheduler/email"
	"github.com/adeeb897/soup-kitchen-scheduler/models"
	"github.com/adeeb897/soup-kitchen-scheduler/utils/retry"
)

const (
	// DefaultInterval is how often a cycle runs.
	DefaultInterval = time.Hour

	// DefaultLeadTime is how far before a shift its reminder fires.
	DefaultLeadTime = 24 * time.Hour
)

// SignupSource is the slice of the signup store the scheduler needs.
type SignupSource interface {
	ListUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]models.SignupWithShift, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

// Scheduler runs the reminder loop.
type Scheduler struct {
	signups  SignupSource
	sender   email.Sender
	interval time.Duration
	leadTime time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	retryCfg retry.Config
	isLeader func() bool

	appName      string
	supportEmail string
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides the cycle period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithLeadTime overrides how far ahead of a shift its reminder fires.
func WithLeadTime(d time.Duration) Option {
	return func(s *Scheduler) { s.leadTime = d }
}

// WithClock injects the clock used for window computation.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger overrides the scheduler's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRetryConfig overrides the per-send retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Scheduler) { s.retryCfg = cfg }
}

// WithLeaderGate restricts sending to the instance for which isLeader reports
// true, so multi-instance deployments do not double-send.
func WithLeaderGate(isLeader func() bool) Option {
	return func(s *Scheduler) { s.isLeader = isLeader }
}

// WithBranding sets the application name and support address rendered into
// reminder emails.
func WithBranding(appName, supportEmail string) Option {
	return func(s *Scheduler) {
		s.appName = appName
		s.supportEmail = supportEmail
	}
}

// New creates a reminder scheduler.
func New(signups SignupSource, sender email.Sender, opts ...Option) *Scheduler {
	s := &Scheduler{
		signups:  signups,
		sender:   sender,
		interval: DefaultInterval,
		leadTime: DefaultLeadTime,
		now:      time.Now,
		logger:   zerolog.Nop(),
		retryCfg: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle sends every due reminder once. A failed send is logged and left
// unmarked so the next cycle retries it; it never aborts the batch.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if s.isLeader != nil && !s.isLeader() {
		s.logger.Debug().Msg("not the reminder leader, skipping cycle")
		return
	}

	now := s.now()
	rows, err := s.signups.ListUpcomingUnreminded(ctx, now.Add(-24*time.Hour), now.Add(s.leadTime))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list pending reminders")
		return
	}

	sent, failed := 0, 0
	for _, row := range rows {
		// A reminder is due once the shift start is inside the lead
		// window; future shifts wait for a later cycle.
		startsAt := row.ShiftStartsAt()
		if startsAt.After(now.Add(s.leadTime)) || startsAt.Before(now) {
			continue
		}

		if err := s.sendOne(ctx, row); err != nil {
			failed++
			s.logger.Warn().Err(err).
				Str("signup_id", row.ID).
				Str("email", row.Email).
				Msg("reminder send failed, will retry next cycle")
			continue
		}

		if err := s.signups.MarkReminderSent(ctx, row.ID, s.now()); err != nil {
			s.logger.Error().Err(err).Str("signup_id", row.ID).Msg("failed to record reminder send")
			continue
		}
		sent++
	}

	if sent > 0 || failed > 0 {
		s.logger.Info().Int("sent", sent).Int("failed", failed).Msg("reminder cycle complete")
	}
}

func (s *Scheduler) sendOne(ctx context.Context, row models.SignupWithShift) error {
	data := email.ShiftEmailData{
		To:           row.Email,
		Name:         row.Name,
		ShiftDate:    row.ShiftDate.Format("Monday, January 2, 2006"),
		StartTime:    row.ShiftStartTime,
		EndTime:      row.ShiftEndTime,
		AppName:      s.appName,
		SupportEmail: s.supportEmail,
	}

	return retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		if err := s.sender.SendShiftReminder(ctx, data); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
}
