package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errPaymentDown = errors.New("payment service down")

func newTestBreaker(maxFailures int, resetTimeout time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(maxFailures, resetTimeout)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func failingCall(invocations *int) func() error {
	return func() error {
		*invocations++
		return errPaymentDown
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(5, 30*time.Second)
	invocations := 0

	for i := 0; i < 5; i++ {
		if err := cb.Execute(context.Background(), failingCall(&invocations)); !errors.Is(err, errPaymentDown) {
			t.Fatalf("Call %d: expected underlying error, got %v", i+1, err)
		}
	}

	if state := cb.GetState(); state != StateOpen {
		t.Fatalf("Expected state open after 5 failures, got %v", state)
	}

	err := cb.Execute(context.Background(), failingCall(&invocations))
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen on 6th call, got %v", err)
	}
	if invocations != 5 {
		t.Fatalf("Expected 5 invocations of the protected call, got %d", invocations)
	}
}

func TestCircuitBreaker_FastFailWhileOpen(t *testing.T) {
	cb, _ := newTestBreaker(5, 30*time.Second)
	invocations := 0

	// 15 consecutive attempts while the dependency is down: 5 real failures,
	// then 10 rejections without invoking the protected call.
	realFailures, rejections := 0, 0
	for i := 0; i < 15; i++ {
		err := cb.Execute(context.Background(), failingCall(&invocations))
		if errors.Is(err, ErrCircuitOpen) {
			rejections++
		} else if errors.Is(err, errPaymentDown) {
			realFailures++
		} else {
			t.Fatalf("Call %d: unexpected error %v", i+1, err)
		}
	}

	if realFailures != 5 || rejections != 10 {
		t.Fatalf("Expected 5 real failures and 10 rejections, got %d and %d", realFailures, rejections)
	}
	if invocations != 5 {
		t.Fatalf("Expected 5 invocations, got %d", invocations)
	}
}

func TestCircuitBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	cb, now := newTestBreaker(5, 30*time.Second)
	invocations := 0

	for i := 0; i < 5; i++ {
		cb.Execute(context.Background(), failingCall(&invocations))
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	*now = now.Add(31 * time.Second)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Expected trial call to pass through, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("Expected closed state after successful trial, got %v", cb.GetState())
	}
	if cb.failureCount != 0 {
		t.Fatalf("Expected failure count reset to 0, got %d", cb.failureCount)
	}
}

func TestCircuitBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(5, 30*time.Second)
	invocations := 0

	for i := 0; i < 5; i++ {
		cb.Execute(context.Background(), failingCall(&invocations))
	}

	*now = now.Add(31 * time.Second)

	if err := cb.Execute(context.Background(), failingCall(&invocations)); !errors.Is(err, errPaymentDown) {
		t.Fatalf("Expected trial call to reach the dependency, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected reopened state after failed trial, got %v", cb.GetState())
	}

	// The timeout restarted: still rejecting before it elapses again.
	if err := cb.Execute(context.Background(), failingCall(&invocations)); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen right after failed trial, got %v", err)
	}

	*now = now.Add(31 * time.Second)
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Expected a new trial after timeout restart, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsCounterWhileClosed(t *testing.T) {
	cb, _ := newTestBreaker(5, 30*time.Second)
	invocations := 0

	for i := 0; i < 4; i++ {
		cb.Execute(context.Background(), failingCall(&invocations))
	}
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	// Four more failures must not open the breaker: the counter was reset.
	for i := 0; i < 4; i++ {
		cb.Execute(context.Background(), failingCall(&invocations))
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("Expected closed state, got %v", cb.GetState())
	}
}
