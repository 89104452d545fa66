package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds retries of transient failures on foreground calls. MaxAttempts
// counts the first call, so the default of 4 means one call plus three retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   1 * time.Second,
		MaxDelay:    4 * time.Second,
	}
}

// Do invokes fn until it succeeds, exhausts the attempt budget, or fails with
// an error the retryable predicate rejects. The last error is surfaced to the
// caller wrapped, so errors.Is still matches the underlying failure.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.backoff(attempt-1)); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}

// backoff returns the delay before the attempt following attempt n:
// min(MaxDelay, BaseDelay * 2^(n-1)).
func (p Policy) backoff(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
