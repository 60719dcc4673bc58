package resilience

import (
	"context"
	"log/slog"

	"github.com/fetchguard/fetchguard/internal/config"
)

// Policy combines the resilience patterns guarding one upstream dependency.
type Policy struct {
	circuitBreaker CircuitBreakerExecutor
	retry          RetryExecutor
	bulkhead       BulkheadExecutor
}

// CircuitBreakerExecutor defines the interface for circuit breaker operations.
type CircuitBreakerExecutor interface {
	Execute(fn func() (any, error)) (any, error)
	Allow() bool
	RecordSuccess()
	RecordFailure()
	State() State
	IsOpen() bool
	Reset()
	Stats() CircuitBreakerStats
	SetOnStateChange(fn func(from, to State))
}

// RetryExecutor defines the interface for retry operations.
type RetryExecutor interface {
	Run(ctx context.Context, fn func(context.Context) error) error
	RunWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error)
	MaxAttempts() int
}

// BulkheadExecutor defines the interface for bulkhead operations.
type BulkheadExecutor interface {
	ExecuteCtx(ctx context.Context, fn func(context.Context) error) error
	ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error)
	ActiveCount() int
	QueuedCount() int
	RejectedCount() int64
}

// NewPolicy creates a new resilience policy from the given configuration.
func NewPolicy(name string, cfg *config.Config, logger *slog.Logger, opts ...InvokerOption) *Policy {
	p := &Policy{}

	if cfg.CircuitBreaker.Enabled {
		p.circuitBreaker = NewCircuitBreaker(name, cfg.CircuitBreaker)
	} else {
		p.circuitBreaker = NewDisabledCircuitBreaker()
	}

	if cfg.Retry.Enabled {
		p.retry = NewRetryingInvoker(cfg.Retry, logger, opts...)
	} else {
		p.retry = NewDisabledRetryingInvoker()
	}

	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	} else {
		p.bulkhead = NewDisabledBulkhead()
	}

	return p
}

// Execute runs an operation through all resilience patterns.
// Execution order: Bulkhead -> Circuit Breaker -> Retry -> Operation
//
// The breaker wraps the retry loop, so one exhausted retry cycle counts as
// ONE breaker failure and an open circuit rejects the call before any
// attempt is made. A rejected call never consumes retry budget: the
// invoker's classifier treats ErrCircuitOpen as fatal.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return p.bulkhead.ExecuteCtx(ctx, func(ctx context.Context) error {
		_, err := p.circuitBreaker.Execute(func() (any, error) {
			return nil, p.retry.Run(ctx, fn)
		})
		return err
	})
}

// ExecuteWithResult runs an operation that returns a result.
// See Execute for details on the ordering.
func (p *Policy) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return p.bulkhead.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		return p.circuitBreaker.Execute(func() (any, error) {
			return p.retry.RunWithResult(ctx, fn)
		})
	})
}

// CircuitBreaker returns the circuit breaker component.
func (p *Policy) CircuitBreaker() CircuitBreakerExecutor {
	return p.circuitBreaker
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (p *Policy) IsCircuitOpen() bool {
	return p.circuitBreaker.IsOpen()
}

// CircuitState returns the current circuit breaker state.
func (p *Policy) CircuitState() State {
	return p.circuitBreaker.State()
}

// CircuitStats returns current circuit breaker statistics.
func (p *Policy) CircuitStats() CircuitBreakerStats {
	return p.circuitBreaker.Stats()
}

// MaxAttempts returns the retry attempt budget.
func (p *Policy) MaxAttempts() int {
	return p.retry.MaxAttempts()
}

// SetOnCircuitStateChange sets a callback for circuit state changes.
func (p *Policy) SetOnCircuitStateChange(fn func(from, to State)) {
	p.circuitBreaker.SetOnStateChange(fn)
}

// BulkheadStats returns bulkhead statistics.
func (p *Policy) BulkheadStats() (active, queued int, rejected int64) {
	return p.bulkhead.ActiveCount(), p.bulkhead.QueuedCount(), p.bulkhead.RejectedCount()
}

// DisabledPolicy is a no-op policy that bypasses all resilience patterns.
type DisabledPolicy struct{}

// NewDisabledPolicy creates a disabled policy.
func NewDisabledPolicy() *DisabledPolicy {
	return &DisabledPolicy{}
}

// Execute runs a function without resilience patterns.
func (p *DisabledPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// ExecuteWithResult runs a function that returns a result without resilience patterns.
func (p *DisabledPolicy) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}

// IsCircuitOpen returns false as this is a disabled policy.
func (p *DisabledPolicy) IsCircuitOpen() bool { return false }

// CircuitState returns StateClosed as this is a disabled policy.
func (p *DisabledPolicy) CircuitState() State { return StateClosed }

// CircuitStats returns zero statistics as this is a disabled policy.
func (p *DisabledPolicy) CircuitStats() CircuitBreakerStats {
	return CircuitBreakerStats{State: StateClosed}
}

// MaxAttempts returns 1 as this is a disabled policy.
func (p *DisabledPolicy) MaxAttempts() int { return 1 }

// SetOnCircuitStateChange does nothing as this is a disabled policy.
func (p *DisabledPolicy) SetOnCircuitStateChange(fn func(from, to State)) {}

// BulkheadStats returns zero values as this is a disabled policy.
func (p *DisabledPolicy) BulkheadStats() (active, queued int, rejected int64) { return 0, 0, 0 }
