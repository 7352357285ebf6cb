// Package retry implements bounded exponential backoff with jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy controls retry behavior. Attempts counts the total number of calls
// including the first; Attempts <= 1 means no retries.
type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay computes the backoff delay before the given retry attempt.
// attempt is 1-based: Delay(1) is the wait after the first failure.
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))

	if limit := float64(p.MaxDelay); p.MaxDelay > 0 && delay > limit {
		delay = limit
	}

	// Up to 30% jitter to avoid synchronized retries across workers.
	if p.Jitter {
		delay += rand.Float64() * 0.3 * delay
	}

	return time.Duration(delay)
}

// Do calls fn up to p.Attempts times, sleeping between attempts per the
// policy. A non-retryable error (per retryable) returns immediately; the
// last error is returned once the budget is spent. Sleeps are abandoned if
// ctx is cancelled.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
	}

	return err
}
