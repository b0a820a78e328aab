package email

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConsoleSender logs emails to console (for development/testing)
type ConsoleSender struct {
	logger zerolog.Logger
}

// NewConsoleSender creates a console-based email sender
func NewConsoleSender() Sender {
	return &ConsoleSender{logger: log.With().Str("component", "email").Logger()}
}

// SendShiftReminder logs the shift reminder to console
func (c *ConsoleSender) SendShiftReminder(ctx context.Context, data ShiftEmailData) error {
	c.logger.Info().
		Str("kind", "shift_reminder").
		Str("to", data.To).
		Str("name", data.Name).
		Str("shift_date", data.ShiftDate).
		Str("start_time", data.StartTime).
		Str("end_time", data.EndTime).
		Msg("email")
	return nil
}

// SendSignupConfirmation logs the signup confirmation to console
func (c *ConsoleSender) SendSignupConfirmation(ctx context.Context, data ShiftEmailData) error {
	c.logger.Info().
		Str("kind", "signup_confirmation").
		Str("to", data.To).
		Str("name", data.Name).
		Str("shift_date", data.ShiftDate).
		Str("start_time", data.StartTime).
		Str("end_time", data.EndTime).
		Msg("email")
	return nil
}

// SendEmail logs the email to console
func (c *ConsoleSender) SendEmail(ctx context.Context, data EmailData) error {
	c.logger.Info().
		Str("kind", "generic").
		Str("from", data.FromAddress).
		Str("to", data.To).
		Str("subject", data.Subject).
		Str("body", data.TextBody).
		Msg("email")
	return nil
}

// Health always returns nil for console sender
func (c *ConsoleSender) Health(ctx context.Context) error {
	return nil
}

// ProviderType returns the provider type
func (c *ConsoleSender) ProviderType() ProviderType {
	return ProviderTypeConsole
}

// NoOpSender is a no-operation sender that discards emails silently
type NoOpSender struct{}

// NewNoOpSender creates a no-operation email sender
func NewNoOpSender() Sender {
	return &NoOpSender{}
}

// SendShiftReminder does nothing and returns nil
func (n *NoOpSender) SendShiftReminder(ctx context.Context, data ShiftEmailData) error {
	return nil
}

// SendSignupConfirmation does nothing and returns nil
func (n *NoOpSender) SendSignupConfirmation(ctx context.Context, data ShiftEmailData) error {
	return nil
}

// SendEmail does nothing and returns nil
func (n *NoOpSender) SendEmail(ctx context.Context, data EmailData) error {
	return nil
}

// Health always returns nil for no-op sender
func (n *NoOpSender) Health(ctx context.Context) error {
	return nil
}

// ProviderType returns the provider type
func (n *NoOpSender) ProviderType() ProviderType {
	return ProviderTypeConsole
}
