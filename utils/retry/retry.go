// Package retry wraps sethvargo/go-retry with the backoff policy used for
// outbound email and provider calls.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config bounds a retried operation.
type Config struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig retries up to 3 times with jittered exponential backoff
// starting at 500ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Do runs fn with bounded exponential backoff. fn signals a retryable failure
// by returning Retryable(err); any other non-nil error aborts immediately.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(cfg.BaseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(cfg.MaxDelay, b)
	b = retry.WithMaxRetries(cfg.MaxAttempts, b)

	return retry.Do(ctx, b, fn)
}

// Retryable marks err as retryable for Do.
func Retryable(err error) error {
	return retry.RetryableError(err)
}
