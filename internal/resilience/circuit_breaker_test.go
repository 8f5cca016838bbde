package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %s", cb.GetState())
	}

	if !cb.allowRequest() {
		t.Error("Expected to allow request in Closed state")
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.GetState() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}

	if cb.allowRequest() {
		t.Error("Expected to not allow request in Open state")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 1*time.Second)

	cb.RecordResult(false)
	cb.RecordResult(true)
	cb.RecordResult(false)

	if cb.GetState() != StateClosed {
		t.Error("Expected non-consecutive failures to keep the circuit Closed")
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 50*time.Millisecond)
	cb.RecordResult(false)

	time.Sleep(80 * time.Millisecond)

	if !cb.allowRequest() {
		t.Fatal("Expected to allow a probe after the reset timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected state HalfOpen, got %s", cb.GetState())
	}
	if cb.allowRequest() {
		t.Error("Expected a second concurrent probe to be rejected")
	}

	cb.RecordResult(true)
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed after successful probe, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpenAfterFailureInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 50*time.Millisecond)
	cb.RecordResult(false)

	time.Sleep(80 * time.Millisecond)
	cb.allowRequest()

	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after failure in HalfOpen")
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)
	ctx := context.Background()

	if err := cb.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	boom := errors.New("test error")
	if err := cb.Execute(ctx, func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped test error, got %v", err)
	}
}

func TestCircuitBreaker_ExecuteOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1*time.Second)
	cb.RecordResult(false)

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected protected function not to run while open")
	}
}

func TestCircuitBreaker_CancellationNotCounted(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })

	if cb.GetState() != StateClosed {
		t.Error("Expected caller cancellation not to open the circuit")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []CircuitState
	cb := NewCircuitBreaker("tts", 1, 1*time.Second).OnStateChange(func(name string, from, to CircuitState) {
		if name != "tts" {
			t.Errorf("Expected name 'tts', got '%s'", name)
		}
		transitions = append(transitions, to)
	})

	cb.RecordResult(false)
	cb.Reset()

	if len(transitions) != 2 || transitions[0] != StateOpen || transitions[1] != StateClosed {
		t.Errorf("Expected [open closed], got %v", transitions)
	}
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.RecordResult(true)
	cb.RecordResult(true)
	cb.RecordResult(false)

	state, requestCount, failureCount, failureRate := cb.GetStats()

	if state != StateClosed {
		t.Errorf("Expected state Closed, got %s", state)
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
	if failureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failureCount)
	}
	if failureRate < 33.0 || failureRate > 34.0 {
		t.Errorf("Expected failure rate around 33.33%%, got %.2f%%", failureRate)
	}
}
