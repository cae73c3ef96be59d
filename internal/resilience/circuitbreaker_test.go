package resilience

import (
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("test error")

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	cb := New(Config{Name: "test"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 2 {
		t.Errorf("halfOpenMax = %d, want 2", cb.halfOpenMax)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.CurrentState())
	}
}

func TestExecute_ClosedForwardsCalls(t *testing.T) {
	t.Parallel()

	cb := New(Config{Name: "test", MaxFailures: 3})
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestExecute_ClosedToOpen(t *testing.T) {
	t.Parallel()

	cb := New(Config{
		Name:         "test",
		MaxFailures:  3,
		ResetTimeout: time.Hour, // long timeout so it stays open
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errTest })
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.CurrentState())
	}

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb := New(Config{Name: "test", MaxFailures: 3})

	_ = cb.Execute(func() error { return errTest })
	_ = cb.Execute(func() error { return errTest })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errTest })
	_ = cb.Execute(func() error { return errTest })

	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed (success interleaved)", cb.CurrentState())
	}
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := New(Config{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Millisecond,
		HalfOpenMax:  2,
	})

	_ = cb.Execute(func() error { return errTest })
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.CurrentState())
	}

	time.Sleep(5 * time.Millisecond)

	// Two successful probes close the breaker.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed after successful probes", cb.CurrentState())
	}
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := New(Config{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Millisecond,
	})

	_ = cb.Execute(func() error { return errTest })
	time.Sleep(5 * time.Millisecond)

	_ = cb.Execute(func() error { return errTest })
	if cb.CurrentState() != StateOpen {
		t.Errorf("state = %v, want re-opened", cb.CurrentState())
	}
}

func TestAllows(t *testing.T) {
	t.Parallel()

	cb := New(Config{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	if !cb.Allows() {
		t.Error("closed breaker does not allow calls")
	}

	_ = cb.Execute(func() error { return errTest })
	if cb.Allows() {
		t.Error("open breaker allows calls before the reset timeout")
	}

	// Allows must not consume half-open probe slots.
	quick := New(Config{Name: "q", MaxFailures: 1, ResetTimeout: time.Millisecond, HalfOpenMax: 1})
	_ = quick.Execute(func() error { return errTest })
	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 10; i++ {
		if !quick.Allows() {
			t.Fatal("Allows = false after reset timeout elapsed")
		}
	}
	if err := quick.Execute(func() error { return nil }); err != nil {
		t.Errorf("probe rejected after repeated Allows checks: %v", err)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
