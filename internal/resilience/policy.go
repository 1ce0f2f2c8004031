package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy declares the retry budget and wait formulas for one listing
// source. Attempt numbers are 1-based in both wait formulas.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (including the first
	// try). A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// BackoffFactor scales the linear wait: factor × attempt seconds.
	// Default: 2.
	BackoffFactor int

	// StrictStatusWait selects the 2^attempt × 5s wait for retryable
	// HTTP statuses instead of the linear formula used for timeouts.
	StrictStatusWait bool
}

// LenientPolicy is the default source policy: 3 attempts, linear waits
// for both timeouts and retryable statuses.
func LenientPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffFactor: 2}
}

// StrictPolicy backs off harder on rate limiting: 5 attempts, linear
// waits on timeouts, exponential 2^attempt × 5s waits on 429/504.
func StrictPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BackoffFactor: 2, StrictStatusWait: true}
}

// Normalize fills zero fields with defaults.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2
	}
	return p
}

// TimeoutWait returns the wait before retrying attempt's timeout:
// BackoffFactor × attempt seconds.
func (p RetryPolicy) TimeoutWait(attempt int) time.Duration {
	return time.Duration(p.BackoffFactor*attempt) * time.Second
}

// StatusWait returns the wait before retrying a 429/504 response seen on
// attempt: 2^attempt × 5s under the strict policy, the linear timeout
// formula otherwise.
func (p RetryPolicy) StatusWait(attempt int) time.Duration {
	if p.StrictStatusWait {
		return time.Duration(1<<uint(attempt)) * 5 * time.Second
	}
	return p.TimeoutWait(attempt)
}

// Sleep waits for d or until ctx is done, returning the context error on
// early cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an on-retry callback that logs each retry wait.
func RetryLogger(service, operation string) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
