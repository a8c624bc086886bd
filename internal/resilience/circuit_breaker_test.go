package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)

	for i := 0; i < 10; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("Unexpected error on call %d: %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)
	failure := errors.New("downstream failure")

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return failure }); !errors.Is(err, failure) {
			t.Fatalf("Expected downstream error on call %d, got %v", i, err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state after %d failures, got %v", 3, cb.GetState())
	}

	err := cb.Call(func() error {
		t.Error("Function should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 20*time.Millisecond)

	cb.Call(func() error { return errors.New("fail") })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	time.Sleep(30 * time.Millisecond)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Expected probe call to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after successful probe, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 20*time.Millisecond)

	cb.Call(func() error { return errors.New("fail") })
	time.Sleep(30 * time.Millisecond)

	cb.Call(func() error { return errors.New("still failing") })
	if cb.GetState() != StateOpen {
		t.Errorf("Expected circuit to reopen after half-open failure, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)

	cb.Call(func() error { return errors.New("fail") })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after reset, got %v", cb.GetState())
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected call to pass after reset, got %v", err)
	}
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	cb := NewCircuitBreaker("test", 5, time.Minute)

	cb.Call(func() error { return nil })
	cb.Call(func() error { return errors.New("fail") })

	state, requests, failures, rate := cb.GetStats()
	if state != StateClosed {
		t.Errorf("Expected closed state, got %v", state)
	}
	if requests != 2 {
		t.Errorf("Expected 2 requests, got %d", requests)
	}
	if failures != 1 {
		t.Errorf("Expected 1 failure, got %d", failures)
	}
	if rate != 50.0 {
		t.Errorf("Expected 50%% failure rate, got %.1f", rate)
	}
}
