// Package fetcher composes the tiered cache with the resilience policy
// into a single read-through fetch pipeline.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fetchguard/fetchguard/internal/cache"
	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/metrics"
	"github.com/fetchguard/fetchguard/internal/metrics/datadog"
	"github.com/fetchguard/fetchguard/internal/resilience"
	"github.com/fetchguard/fetchguard/internal/types"
)

// Operation produces the value for a key when the cache cannot. It is
// invoked under the resilience policy: retried on transient failure and
// rejected outright while the circuit is open.
type Operation func(ctx context.Context) (any, error)

// policyExecutor is the slice of resilience.Policy the fetcher needs;
// DisabledPolicy satisfies it too.
type policyExecutor interface {
	ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error)
	IsCircuitOpen() bool
	CircuitState() resilience.State
	CircuitStats() resilience.CircuitBreakerStats
	MaxAttempts() int
	SetOnCircuitStateChange(fn func(from, to resilience.State))
}

// Fetcher is the resilient read-through fetcher: cache first, then the
// caller's operation guarded by circuit breaker and retry. The cache
// check happens before the breaker, so cached reads keep working while
// an upstream is down.
type Fetcher struct {
	cache      *cache.TieredCache
	policy     policyExecutor
	serializer types.Serializer
	metrics    types.MetricsRecorder
	tracker    *metrics.Tracker
	publisher  types.Publisher
	background *metrics.BackgroundPublisher
	logger     *slog.Logger
	sfGroup    singleflight.Group
	closed     atomic.Bool
}

// New creates a fetcher from the given configuration and options.
func New(cfg *config.Config, opts *types.FetcherOptions) (*Fetcher, error) {
	logger := slog.Default()
	if opts != nil && opts.Logger != nil {
		logger = slog.New(cache.NewSlogAdapter(opts.Logger))
	}
	logger = logger.With("component", "fetcher")

	f := &Fetcher{
		serializer: cache.NewJSONSerializer(),
		logger:     logger,
	}

	// The built-in tracker backs both the fetcher and the cache tiers, so
	// it has to exist before the tiered cache is constructed.
	if opts == nil {
		opts = &types.FetcherOptions{}
	}
	if opts.Metrics != nil {
		f.metrics = opts.Metrics
	} else if cfg.Metrics.Enabled {
		f.tracker = metrics.NewTracker()
		f.metrics = f.tracker
		opts.Metrics = f.tracker
	}

	tiered, err := cache.NewTieredCache(cfg, opts)
	if err != nil {
		return nil, err
	}
	f.cache = tiered

	if opts.Serializer != nil {
		f.serializer = opts.Serializer
	}
	if opts.DisableResilience {
		f.policy = resilience.NewDisabledPolicy()
	}

	if f.policy == nil {
		f.policy = resilience.NewPolicy("upstream", cfg, logger)
	}

	if cfg.Metrics.Enabled {
		publisher, pubErr := datadog.NewPublisher(&cfg.Metrics.DataDog, logger)
		if pubErr != nil {
			_ = tiered.Close()
			return nil, pubErr
		}
		f.publisher = publisher

		if cfg.Metrics.PublishInterval > 0 {
			f.background = metrics.NewBackgroundPublisher(publisher, cfg.Metrics.PublishInterval, f.publisherHealth, logger)
			f.background.Start(context.Background())
		}
	}

	f.policy.SetOnCircuitStateChange(func(from, to resilience.State) {
		logger.Info("Circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		if f.metrics != nil {
			f.metrics.RecordCircuitBreakerStateChange(from.String(), to.String())
		}
	})

	return f, nil
}

// Fetch returns the value for key, from cache if possible, otherwise by
// running op under the resilience policy and caching the result.
//
// Concurrent fetches for the same cold key share a single op invocation.
// A failed op never caches anything; the error is returned to every
// waiting caller. Cancellation of ctx is honored between retry attempts.
func (f *Fetcher) Fetch(ctx context.Context, key string, dest any, op Operation, opts ...types.Option) error {
	if f.closed.Load() {
		return types.ErrClosed
	}

	start := time.Now()

	err := f.cache.Get(ctx, key, dest, opts...)
	if err == nil {
		f.recordFetch("hit", start)
		return nil
	}
	if types.IsInvalidKey(err) {
		return err
	}
	if !types.IsCacheMiss(err) && !types.IsDurableUnavailable(err) {
		f.logger.Debug("Cache read failed, fetching from upstream", "key", key, "error", err)
	}

	data, err := f.fetchShared(ctx, key, op, opts...)
	if err != nil {
		switch {
		case types.IsCircuitOpen(err):
			f.recordFetch("rejected", start)
		case types.IsCancellation(err):
			f.recordFetch("canceled", start)
		default:
			f.recordFetch("error", start)
		}
		return err
	}

	f.recordFetch("fetched", start)
	return f.serializer.Unmarshal(data, dest)
}

// fetchShared runs op through singleflight so a stampede of misses for
// one key costs a single upstream call.
func (f *Fetcher) fetchShared(ctx context.Context, key string, op Operation, opts ...types.Option) ([]byte, error) {
	result, err, _ := f.sfGroup.Do(key, func() (any, error) {
		// A concurrent fetch may have filled the cache while this call
		// waited on the flight group.
		if data, getErr := f.cache.GetBytes(ctx, key, opts...); getErr == nil {
			return data, nil
		}

		value, fetchErr := f.policy.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
			return op(ctx)
		})
		if fetchErr != nil {
			return nil, f.annotate(key, fetchErr)
		}

		data, marshalErr := f.serializer.Marshal(value)
		if marshalErr != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSerializationFailed, marshalErr)
		}

		if setErr := f.cache.SetBytes(ctx, key, data, opts...); setErr != nil {
			f.logger.Warn("Failed to cache fetched value", "key", key, "error", setErr)
		}

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	data, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", result)
	}
	return data, nil
}

// annotate fills the key into retry-exhaustion errors, which the retry
// layer cannot know.
func (f *Fetcher) annotate(key string, err error) error {
	var fe *types.FetchError
	if errors.As(err, &fe) && fe.Key == "" {
		fe.Key = key
	}
	return err
}

func (f *Fetcher) recordFetch(outcome string, start time.Time) {
	if f.metrics != nil {
		f.metrics.RecordFetch(outcome, time.Since(start))
	}
}

// Set stores a value directly, bypassing the fetch pipeline. Useful for
// warming the cache with values obtained out of band.
func (f *Fetcher) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	if f.closed.Load() {
		return types.ErrClosed
	}

	data, err := f.serializer.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerializationFailed, err)
	}
	return f.cache.SetBytes(ctx, key, data, opts...)
}

// Get reads from the cache only, never invoking an upstream operation.
func (f *Fetcher) Get(ctx context.Context, key string, dest any, opts ...types.Option) error {
	if f.closed.Load() {
		return types.ErrClosed
	}
	return f.cache.Get(ctx, key, dest, opts...)
}

// Invalidate removes key from all cache tiers. Removing an absent key is
// not an error.
func (f *Fetcher) Invalidate(ctx context.Context, key string, opts ...types.Option) error {
	if f.closed.Load() {
		return types.ErrClosed
	}
	return f.cache.Invalidate(ctx, key, opts...)
}

// Contains reports whether a live entry exists for key.
func (f *Fetcher) Contains(ctx context.Context, key string, opts ...types.Option) (bool, error) {
	if f.closed.Load() {
		return false, types.ErrClosed
	}
	return f.cache.Contains(ctx, key, opts...)
}

// Clear removes all entries from the given cache level.
func (f *Fetcher) Clear(ctx context.Context, level types.CacheLevel) error {
	if f.closed.Load() {
		return types.ErrClosed
	}
	return f.cache.Clear(ctx, level)
}

// CircuitState returns the current circuit breaker state.
func (f *Fetcher) CircuitState() resilience.State {
	return f.policy.CircuitState()
}

// IsCircuitOpen returns true while the circuit breaker rejects fetches.
func (f *Fetcher) IsCircuitOpen() bool {
	return f.policy.IsCircuitOpen()
}

// Cache exposes the underlying tiered cache.
func (f *Fetcher) Cache() *cache.TieredCache {
	return f.cache
}

// Health returns combined health metrics for the cache tiers and the
// circuit breaker.
func (f *Fetcher) Health(ctx context.Context) *types.HealthMetrics {
	h := f.cache.Health(ctx)

	stats := f.policy.CircuitStats()
	h.Circuit = types.CircuitHealthMetrics{
		State:            stats.State.String(),
		ConsecutiveFails: stats.ConsecutiveFails,
		HalfOpenSuccs:    stats.HalfOpenSuccs,
	}

	// An open circuit means upstream fetches fail fast; cached reads
	// still work, so the fetcher is degraded rather than down.
	if h.Status == types.HealthStatusHealthy && stats.State == resilience.StateOpen {
		h.Status = types.HealthStatusDegraded
	}

	return h
}

// Metrics returns a snapshot of recorded fetch and cache metrics. A zero
// snapshot is returned when the built-in tracker is not in use (metrics
// disabled, or a caller-supplied recorder).
func (f *Fetcher) Metrics() types.MetricsSnapshot {
	if f.tracker == nil {
		return types.MetricsSnapshot{}
	}
	return f.tracker.Snapshot()
}

// publisherHealth condenses the current health view for the background
// metrics publisher.
func (f *Fetcher) publisherHealth() *types.PublisherHealthMetrics {
	h := f.Health(context.Background())

	phm := &types.PublisherHealthMetrics{
		MemoryUsedBytes:       h.Memory.SizeBytes,
		MemoryLimitBytes:      h.Memory.MaxSizeBytes,
		MemoryUsagePercentage: h.Memory.UsagePercentage,
		TotalEntries:          int64(h.Memory.EntryCount),
		HitRatio:              h.Memory.HitRatio,
		CircuitState:          h.Circuit.State,
		DurableAvailable:      h.Durable.Available,
	}

	if f.tracker != nil {
		s := f.tracker.Snapshot()
		phm.HitRatio = s.TotalHitRatio()
		phm.AverageLatencyMs = s.AvgLatencyMs
	}

	return phm
}

// Close releases all resources, waiting for background cache operations.
func (f *Fetcher) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	if f.background != nil {
		f.background.Stop()
	}
	if f.publisher != nil {
		_ = f.publisher.Close()
	}

	return f.cache.Close()
}
