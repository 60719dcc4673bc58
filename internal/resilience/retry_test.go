package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

func testRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		Enabled:     true,
		MaxAttempts: 3,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
	}
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("doubles and caps", func(t *testing.T) {
		fn := ExponentialBackoff(2*time.Second, 5*time.Second, 2.0, false)

		want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
		for i, w := range want {
			if got := fn(i + 1); got != w {
				t.Errorf("backoff(attempt=%d) = %v, want %v", i+1, got, w)
			}
		}
	})

	t.Run("non-decreasing up to the cap", func(t *testing.T) {
		fn := ExponentialBackoff(100*time.Millisecond, 2*time.Second, 2.0, false)
		prev := time.Duration(0)
		for attempt := 1; attempt <= 8; attempt++ {
			d := fn(attempt)
			if d < prev {
				t.Errorf("backoff decreased at attempt %d: %v < %v", attempt, d, prev)
			}
			if d > 2*time.Second {
				t.Errorf("backoff(attempt=%d) = %v exceeds cap", attempt, d)
			}
			prev = d
		}
	})

	t.Run("jitter stays within 25 percent", func(t *testing.T) {
		fn := ExponentialBackoff(1*time.Second, 10*time.Second, 2.0, true)
		for i := 0; i < 100; i++ {
			d := fn(1)
			if d < 750*time.Millisecond || d > 1250*time.Millisecond {
				t.Fatalf("jittered backoff = %v, want within [750ms, 1250ms]", d)
			}
		}
	})
}

func TestRetryExhaustion(t *testing.T) {
	ri := NewRetryingInvoker(testRetryConfig(), nil)

	var calls atomic.Int32
	boom := errors.New("always down")

	_, err := ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	})

	// Invoked exactly maxAttempts times
	if got := calls.Load(); got != 3 {
		t.Errorf("operation invoked %d times, want 3", got)
	}

	// The last error is surfaced, wrapped with the attempt count
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want chain containing last error", err)
	}
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %T, want *types.FetchError", err)
	}
	if fe.Attempts != 3 {
		t.Errorf("FetchError.Attempts = %d, want 3", fe.Attempts)
	}
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	ri := NewRetryingInvoker(testRetryConfig(), nil)

	var calls atomic.Int32
	result, err := ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return "recovered", nil
	})

	if err != nil {
		t.Fatalf("RunWithResult() error = %v, want nil", err)
	}
	if result != "recovered" {
		t.Errorf("result = %v, want recovered", result)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("operation invoked %d times, want exactly 3", got)
	}
}

func TestRetryNoRetryOnSuccess(t *testing.T) {
	ri := NewRetryingInvoker(testRetryConfig(), nil)

	var calls atomic.Int32
	err := ri.Run(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	if err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("operation invoked %d times, want 1", got)
	}
}

func TestRetryBackoffDelays(t *testing.T) {
	cfg := testRetryConfig()
	cfg.BaseDelay = 20 * time.Millisecond
	cfg.MaxDelay = 30 * time.Millisecond
	ri := NewRetryingInvoker(cfg, nil)

	var stamps []time.Time
	_, _ = ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		stamps = append(stamps, time.Now())
		return nil, errors.New("down")
	})

	if len(stamps) != 3 {
		t.Fatalf("got %d attempts, want 3", len(stamps))
	}

	// Delay 1: ~20ms, delay 2: capped at ~30ms; both at least the schedule,
	// and non-decreasing.
	d1 := stamps[1].Sub(stamps[0])
	d2 := stamps[2].Sub(stamps[1])
	if d1 < 20*time.Millisecond {
		t.Errorf("first delay = %v, want >= 20ms", d1)
	}
	if d2 < 30*time.Millisecond {
		t.Errorf("second delay = %v, want >= 30ms (capped)", d2)
	}
	if d2 < d1-5*time.Millisecond {
		t.Errorf("delays decreased: %v then %v", d1, d2)
	}
}

func TestRetryNonRetryableAbortsImmediately(t *testing.T) {
	ri := NewRetryingInvoker(testRetryConfig(), nil)

	var calls atomic.Int32
	_, err := ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, ErrCircuitOpen
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen unwrapped", err)
	}
	if types.IsFetchFailure(err) {
		t.Error("non-retryable abort must not be wrapped as exhaustion")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("operation invoked %d times, want 1", got)
	}
}

func TestRetryCustomPredicate(t *testing.T) {
	fatal := errors.New("malformed address")
	ri := NewRetryingInvoker(testRetryConfig(), nil,
		WithRetryablePredicate(func(err error) bool {
			return !errors.Is(err, fatal)
		}),
	)

	var calls atomic.Int32
	_, err := ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("error = %v, want fatal error", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("operation invoked %d times, want 1 for fatal error", got)
	}
}

func TestRetryCustomBackoffFunc(t *testing.T) {
	var seen []int
	ri := NewRetryingInvoker(testRetryConfig(), nil,
		WithBackoffFunc(func(attempt int) time.Duration {
			seen = append(seen, attempt)
			return 0
		}),
	)

	_, _ = ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	})

	if len(seen) != 2 {
		t.Fatalf("backoff consulted %d times, want 2 for 3 attempts", len(seen))
	}
	if seen[0] != 1 || seen[1] != 2 {
		t.Errorf("backoff attempts = %v, want [1 2]", seen)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	t.Run("cancelled between attempts", func(t *testing.T) {
		cfg := testRetryConfig()
		cfg.BaseDelay = 1 * time.Second
		cfg.MaxDelay = 1 * time.Second
		ri := NewRetryingInvoker(cfg, nil)

		ctx, cancel := context.WithCancel(context.Background())

		var calls atomic.Int32
		errCh := make(chan error, 1)
		go func() {
			_, err := ri.RunWithResult(ctx, func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, errors.New("down")
			})
			errCh <- err
		}()

		// Cancel during the first backoff wait
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("retry loop did not stop on cancellation")
		}

		if got := calls.Load(); got != 1 {
			t.Errorf("operation invoked %d times after cancel, want 1", got)
		}
	})

	t.Run("already cancelled", func(t *testing.T) {
		ri := NewRetryingInvoker(testRetryConfig(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls atomic.Int32
		_, err := ri.RunWithResult(ctx, func(ctx context.Context) (any, error) {
			calls.Add(1)
			return nil, nil
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if calls.Load() != 0 {
			t.Error("operation invoked despite cancelled context")
		}
	})
}

func TestRetryStats(t *testing.T) {
	ri := NewRetryingInvoker(testRetryConfig(), nil)

	_ = ri.Run(context.Background(), func(ctx context.Context) error { return nil })
	_ = ri.Run(context.Background(), func(ctx context.Context) error { return errors.New("down") })

	retries, success, failure := ri.Stats()
	if success != 1 {
		t.Errorf("success = %d, want 1", success)
	}
	if failure != 1 {
		t.Errorf("failure = %d, want 1", failure)
	}
	if retries != 2 {
		t.Errorf("retries = %d, want 2", retries)
	}

	ri.ResetStats()
	retries, success, failure = ri.Stats()
	if retries != 0 || success != 0 || failure != 0 {
		t.Error("stats not reset")
	}
}

func TestDisabledRetryingInvoker(t *testing.T) {
	ri := NewDisabledRetryingInvoker()

	var calls atomic.Int32
	_, err := ri.RunWithResult(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("down")
	})

	if err == nil {
		t.Error("error = nil, want passthrough error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("operation invoked %d times, want 1", got)
	}
	if ri.MaxAttempts() != 1 {
		t.Errorf("MaxAttempts() = %d, want 1", ri.MaxAttempts())
	}
}
