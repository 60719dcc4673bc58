package resilience

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

// BackoffFunc computes the delay before the next attempt. The first retry
// passes attempt=1.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns a BackoffFunc computing
// min(base * multiplier^(attempt-1), max), optionally with +-25% jitter.
func ExponentialBackoff(base, max time.Duration, multiplier float64, jitter bool) BackoffFunc {
	return func(attempt int) time.Duration {
		backoff := float64(base) * math.Pow(multiplier, float64(attempt-1))

		if max > 0 && backoff > float64(max) {
			backoff = float64(max)
		}

		if jitter {
			jitterRange := backoff * 0.25
			backoff += (rand.Float64() * 2 * jitterRange) - jitterRange
		}

		return time.Duration(backoff)
	}
}

// RetryingInvoker retries a fallible operation with bounded attempts and
// a pluggable backoff schedule. The default classifier retries any error
// except circuit-open, bulkhead rejection and caller cancellation; hosts
// that can distinguish fatal upstream responses supply their own.
type RetryingInvoker struct {
	maxAttempts int
	backoff     BackoffFunc
	retryable   func(error) bool
	logger      *slog.Logger

	totalRetries atomic.Int64
	totalSuccess atomic.Int64
	totalFailure atomic.Int64
}

// InvokerOption customizes a RetryingInvoker.
type InvokerOption func(*RetryingInvoker)

// WithBackoffFunc overrides the backoff schedule.
func WithBackoffFunc(fn BackoffFunc) InvokerOption {
	return func(ri *RetryingInvoker) {
		if fn != nil {
			ri.backoff = fn
		}
	}
}

// WithRetryablePredicate overrides the retryable-error classifier.
func WithRetryablePredicate(fn func(error) bool) InvokerOption {
	return func(ri *RetryingInvoker) {
		if fn != nil {
			ri.retryable = fn
		}
	}
}

// NewRetryingInvoker creates a new invoker with the given configuration.
func NewRetryingInvoker(cfg config.RetryConfig, logger *slog.Logger, opts ...InvokerOption) *RetryingInvoker {
	if logger == nil {
		logger = slog.Default()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	ri := &RetryingInvoker{
		maxAttempts: maxAttempts,
		backoff:     ExponentialBackoff(baseDelay, maxDelay, multiplier, cfg.Jitter),
		retryable:   IsRetryable,
		logger:      logger.With("component", "retry"),
	}

	for _, opt := range opts {
		opt(ri)
	}

	return ri
}

// Run executes an operation with retry logic.
func (ri *RetryingInvoker) Run(ctx context.Context, fn func(context.Context) error) error {
	_, err := ri.RunWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// RunWithResult executes an operation that returns a result with retry
// logic. On exhaustion the last observed error is surfaced wrapped in a
// FetchError carrying the attempt count; a non-retryable error or a
// cancelled context aborts immediately and is returned unwrapped.
func (ri *RetryingInvoker) RunWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= ri.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			ri.totalFailure.Add(1)
			return nil, ctx.Err()
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			ri.totalSuccess.Add(1)
			return result, nil
		}

		lastErr = err
		ri.logger.Debug("attempt failed",
			"attempt", attempt,
			"max_attempts", ri.maxAttempts,
			"error", err,
		)

		if !ri.retryable(err) {
			ri.totalFailure.Add(1)
			return nil, err
		}

		if attempt == ri.maxAttempts {
			break
		}

		ri.totalRetries.Add(1)

		select {
		case <-ctx.Done():
			ri.totalFailure.Add(1)
			return nil, ctx.Err()
		case <-time.After(ri.backoff(attempt)):
		}
	}

	ri.totalFailure.Add(1)
	return nil, types.NewFetchError("", ri.maxAttempts, lastErr)
}

// MaxAttempts returns the configured attempt budget.
func (ri *RetryingInvoker) MaxAttempts() int {
	return ri.maxAttempts
}

// Stats returns retry statistics.
func (ri *RetryingInvoker) Stats() (retries, success, failure int64) {
	return ri.totalRetries.Load(), ri.totalSuccess.Load(), ri.totalFailure.Load()
}

// ResetStats resets the statistics.
func (ri *RetryingInvoker) ResetStats() {
	ri.totalRetries.Store(0)
	ri.totalSuccess.Store(0)
	ri.totalFailure.Store(0)
}

// DisabledRetryingInvoker is a no-op invoker that runs the operation once.
type DisabledRetryingInvoker struct{}

// NewDisabledRetryingInvoker creates a disabled invoker.
func NewDisabledRetryingInvoker() *DisabledRetryingInvoker {
	return &DisabledRetryingInvoker{}
}

// Run executes the function once without retry logic.
func (ri *DisabledRetryingInvoker) Run(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// RunWithResult executes the function once without retry logic.
func (ri *DisabledRetryingInvoker) RunWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}

// MaxAttempts returns 1 as this is a disabled invoker.
func (ri *DisabledRetryingInvoker) MaxAttempts() int { return 1 }

// Stats returns zero values as this is a disabled invoker.
func (ri *DisabledRetryingInvoker) Stats() (retries, success, failure int64) { return 0, 0, 0 }

// ResetStats does nothing as this is a disabled invoker.
func (ri *DisabledRetryingInvoker) ResetStats() {}
