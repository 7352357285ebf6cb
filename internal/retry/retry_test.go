package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("throttled")

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts:   attempts,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestDoSucceedsWithinBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(error) bool { return true }, func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("access denied")
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(err error) bool { return !errors.Is(err, permanent) }, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(error) bool { return true }, func(context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoAbandonsSleepOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{Attempts: 3, BaseDelay: time.Hour, Multiplier: 2.0}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, policy, func(error) bool { return true }, func(context.Context) error {
			calls++
			return errTransient
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, errTransient) {
			t.Fatalf("expected last error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDelayGrowsAndCaps(t *testing.T) {
	p := Policy{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 400 * time.Millisecond},
		{attempt: 5, want: time.Second}, // capped
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayJitterStaysBounded(t *testing.T) {
	p := Policy{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	for i := 0; i < 50; i++ {
		got := p.Delay(2)
		if got < 200*time.Millisecond || got > 260*time.Millisecond {
			t.Fatalf("jittered Delay(2) = %v, want within [200ms, 260ms]", got)
		}
	}
}
