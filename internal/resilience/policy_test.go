package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
)

func testPolicyConfig() *config.Config {
	cfg := config.ForTesting()
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:             true,
		FailureThreshold:    2,
		ResetTimeout:        50 * time.Millisecond,
		HalfOpenMaxAttempts: 1,
	}
	cfg.Retry = config.RetryConfig{
		Enabled:     true,
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
	return cfg
}

func TestPolicyBreakerWrapsRetry(t *testing.T) {
	cfg := testPolicyConfig()
	p := NewPolicy("t", cfg, nil)

	var calls atomic.Int32
	fail := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("down")
	}

	// One exhausted retry cycle (3 attempts) counts as ONE breaker failure.
	_, _ = p.ExecuteWithResult(context.Background(), fail)
	if p.CircuitState() != StateClosed {
		t.Fatalf("state after 1 exhausted cycle = %v, want closed", p.CircuitState())
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}

	// Second exhausted cycle crosses FailureThreshold=2.
	_, _ = p.ExecuteWithResult(context.Background(), fail)
	if p.CircuitState() != StateOpen {
		t.Fatalf("state after 2 exhausted cycles = %v, want open", p.CircuitState())
	}

	// Open circuit rejects before any attempt; retry budget untouched.
	calls.Store(0)
	_, err := p.ExecuteWithResult(context.Background(), fail)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 0 {
		t.Errorf("operation invoked %d times while circuit open, want 0", calls.Load())
	}
}

func TestPolicyRecovery(t *testing.T) {
	cfg := testPolicyConfig()
	p := NewPolicy("t", cfg, nil)

	fail := func(ctx context.Context) (any, error) { return nil, errors.New("down") }
	_, _ = p.ExecuteWithResult(context.Background(), fail)
	_, _ = p.ExecuteWithResult(context.Background(), fail)
	if !p.IsCircuitOpen() {
		t.Fatal("circuit not open after threshold")
	}

	time.Sleep(60 * time.Millisecond)

	// Trial call succeeds; HalfOpenMaxAttempts=1 closes the circuit.
	result, err := p.ExecuteWithResult(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("trial call error = %v", err)
	}
	if result != 42 {
		t.Errorf("result = %v, want 42", result)
	}
	if p.CircuitState() != StateClosed {
		t.Errorf("state = %v, want closed after recovery", p.CircuitState())
	}
}

func TestPolicyDisabledComponents(t *testing.T) {
	cfg := config.ForTesting()
	// All patterns disabled
	p := NewPolicy("t", cfg, nil)

	var calls atomic.Int32
	_, err := p.ExecuteWithResult(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("down")
	})

	if err == nil {
		t.Error("error = nil, want passthrough")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 with retry disabled", got)
	}
	if p.CircuitState() != StateClosed {
		t.Errorf("disabled breaker state = %v, want closed", p.CircuitState())
	}
}

func TestPolicyExecuteNoResult(t *testing.T) {
	p := NewPolicy("t", testPolicyConfig(), nil)

	var ran bool
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Errorf("Execute() = %v, ran = %v", err, ran)
	}
}

func TestDisabledPolicy(t *testing.T) {
	p := NewDisabledPolicy()

	result, err := p.ExecuteWithResult(context.Background(), func(ctx context.Context) (any, error) {
		return "pass", nil
	})
	if err != nil || result != "pass" {
		t.Errorf("ExecuteWithResult() = (%v, %v), want (pass, nil)", result, err)
	}
	if p.IsCircuitOpen() {
		t.Error("IsCircuitOpen() = true, want false")
	}
	if p.MaxAttempts() != 1 {
		t.Errorf("MaxAttempts() = %d, want 1", p.MaxAttempts())
	}
}
