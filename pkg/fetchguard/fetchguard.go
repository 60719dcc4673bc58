package fetchguard

import (
	"context"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/fetcher"
	"github.com/fetchguard/fetchguard/internal/resilience"
)

// Operation produces the value for a key when the cache cannot.
type Operation = fetcher.Operation

// CircuitState is the state of the circuit breaker guarding upstream
// fetches.
type CircuitState = resilience.State

const (
	// CircuitClosed means fetches flow to the upstream normally.
	CircuitClosed = resilience.StateClosed
	// CircuitOpen means fetches fail fast without reaching the upstream.
	CircuitOpen = resilience.StateOpen
	// CircuitHalfOpen means a limited number of probe fetches are allowed.
	CircuitHalfOpen = resilience.StateHalfOpen
)

// Cache is the tier-facing subset of the fetcher: direct reads and
// writes that never invoke an upstream operation.
type Cache interface {
	// Get reads from the cache only, never invoking an upstream operation.
	Get(ctx context.Context, key string, dest any, opts ...Option) error

	// Set stores a value directly, bypassing the fetch pipeline.
	Set(ctx context.Context, key string, value any, opts ...Option) error

	// Invalidate removes key from all cache tiers.
	Invalidate(ctx context.Context, key string, opts ...Option) error

	// Contains reports whether a live entry exists for key.
	Contains(ctx context.Context, key string, opts ...Option) (bool, error)

	// Clear removes all entries from the given cache level.
	Clear(ctx context.Context, level CacheLevel) error
}

// Fetcher is the public surface of the resilient read-through fetcher.
type Fetcher interface {
	Cache

	// Fetch returns the value for key, from cache if possible, otherwise
	// by running op under the resilience policy and caching the result.
	Fetch(ctx context.Context, key string, dest any, op Operation, opts ...Option) error

	// CircuitState returns the current circuit breaker state.
	CircuitState() CircuitState

	// IsCircuitOpen returns true while the circuit breaker rejects fetches.
	IsCircuitOpen() bool

	// Health returns combined health metrics for the cache tiers and the
	// circuit breaker.
	Health(ctx context.Context) *HealthMetrics

	// Metrics returns a snapshot of recorded fetch and cache metrics.
	Metrics() MetricsSnapshot

	// Close releases all resources.
	Close() error
}

// FetchAs is a typed convenience wrapper around Fetcher.Fetch for callers
// that prefer a returned value over an out parameter.
func FetchAs[T any](ctx context.Context, f Fetcher, key string, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	err := f.Fetch(ctx, key, &result, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, opts...)
	return result, err
}

// New creates a new fetcher with default configuration.
func New(opts ...FetcherOption) (Fetcher, error) {
	cfg := config.DefaultConfig()
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a new fetcher from configuration.
func NewFromConfig(cfg *config.Config, opts ...FetcherOption) (Fetcher, error) {
	fetcherOpts := &FetcherOptions{}
	for _, opt := range opts {
		opt(fetcherOpts)
	}
	return fetcher.New(cfg, fetcherOpts)
}

// NewFromFile creates a new fetcher from a JSON config file. Environment
// variables prefixed FETCHGUARD_ override file values.
func NewFromFile(path string, opts ...FetcherOption) (Fetcher, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewMemoryOnly creates a fetcher using only the in-memory cache tier.
func NewMemoryOnly(opts ...FetcherOption) (Fetcher, error) {
	cfg := config.DefaultConfig()
	cfg.File.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Defaults.Level = "memory-only"
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before
// creating a fetcher.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}
