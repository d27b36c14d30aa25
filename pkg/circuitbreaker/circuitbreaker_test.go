package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	var changes []State
	cb := New("stt", Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second}, func(_ string, s State) {
		changes = append(changes, s)
	})
	cb.now = func() time.Time { return now }

	fail := func() error { return errors.New("boom") }
	ok := func() error { return nil }
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	if err := cb.Execute(ctx, ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("Execute() while open = %v, want ErrOpen", err)
	}

	now = now.Add(2 * time.Second)
	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("Execute() half-open = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := New("tts", Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second}, nil)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func() error { return errors.New("x") })
	now = now.Add(time.Second)
	_ = cb.Execute(context.Background(), func() error { return errors.New("y") })
	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open", cb.GetState())
	}
}

func TestCircuitBreaker_IgnoresCancelledContext(t *testing.T) {
	cb := New("llm", Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = cb.Execute(ctx, func() error { return ctx.Err() })
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
}
