package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

// DefaultShutdownTimeout is the default timeout for shutting down the tiered cache.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultBackgroundOpTimeout is the default timeout for background operations.
const DefaultBackgroundOpTimeout = 5 * time.Second

// TieredCache coordinates the fast in-memory tier and the slower durable
// tier (file-backed by default, Redis when configured). Reads check
// memory first; a durable hit is promoted into memory in the background
// with its remaining TTL, so repeated reads of a warm key never touch
// the slow tier.
//
// An unavailable durable tier degrades reads and writes to memory-only
// rather than failing them.
type TieredCache struct {
	memory         types.MemoryCacheLayer
	durable        types.DurableCacheLayer
	serializer     types.Serializer
	config         *config.Config
	metrics        types.MetricsRecorder
	logger         *slog.Logger
	keyValidator   *types.KeyValidator
	shutdownCancel context.CancelFunc
	shutdownCtx    context.Context
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	closed         atomic.Bool
}

// entryReader is implemented by tiers that can report an entry with its
// expiry, letting promotion carry the remaining TTL across tiers.
type entryReader interface {
	getEntry(ctx context.Context, key string) (entry, error)
}

// NewTieredCache creates a tiered cache from the given configuration and
// options.
//
//nolint:gocyclo // Configuration initialization requires multiple conditional checks
func NewTieredCache(cfg *config.Config, opts *types.FetcherOptions) (*TieredCache, error) {
	logger := slog.Default()
	if opts != nil && opts.Logger != nil {
		logger = slog.New(slogAdapter{logger: opts.Logger})
	}
	logger = logger.With("component", "tiered-cache")

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	tc := &TieredCache{
		config:         cfg,
		logger:         logger,
		serializer:     NewJSONSerializer(),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	if opts != nil {
		if opts.Serializer != nil {
			tc.serializer = opts.Serializer
		}
		if opts.Metrics != nil {
			tc.metrics = opts.Metrics
		}
		if opts.CacheDir != "" {
			cfg.File.Dir = opts.CacheDir
		}
		if opts.RedisAddress != "" {
			cfg.Redis.Address = opts.RedisAddress
			cfg.Redis.Enabled = true
			cfg.File.Enabled = false
		}
		if !opts.RedisPassword.IsEmpty() {
			cfg.Redis.Password = opts.RedisPassword
		}
		if opts.DisableDurable {
			cfg.File.Enabled = false
			cfg.Redis.Enabled = false
		}
	}

	if cfg.KeyValidation.Enabled {
		tc.keyValidator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	if cfg.Memory.Enabled {
		memCache, err := NewMemoryCache(cfg.Memory, logger)
		if err != nil {
			return nil, err
		}
		tc.memory = memCache
	} else {
		tc.memory = NewDisabledMemoryCache()
	}

	switch {
	case cfg.Redis.Enabled:
		redisCache, err := NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Failed to create Redis tier, using memory-only mode", "error", err)
			tc.durable = NewDisabledDurableCache()
		} else {
			tc.durable = redisCache
		}
	case cfg.File.Enabled:
		fileCache, err := NewFileCache(cfg.File, logger)
		if err != nil {
			logger.Warn("Failed to create file tier, using memory-only mode", "error", err)
			tc.durable = NewDisabledDurableCache()
		} else {
			tc.durable = fileCache
		}
	default:
		tc.durable = NewDisabledDurableCache()
	}

	return tc, nil
}

// GetBytes retrieves the raw stored bytes for key.
func (tc *TieredCache) GetBytes(ctx context.Context, key string, opts ...types.Option) ([]byte, error) {
	if tc.closed.Load() {
		return nil, types.ErrClosed
	}

	if err := tc.validateKey(key); err != nil {
		return nil, err
	}

	start := time.Now()
	options := tc.applyDefaults(opts...)

	var data []byte
	var err error
	var layer string

	switch options.Level {
	case types.LevelMemoryOnly:
		data, err = tc.memory.Get(ctx, key)
		layer = "memory"

	case types.LevelDurableOnly:
		data, err = tc.durable.Get(ctx, key)
		layer = tc.durable.Name()

	case types.LevelMemoryThenDurable, types.LevelAll:
		data, layer, err = tc.getFromBothTiers(ctx, key, options)

	default:
		return nil, types.ErrCacheMiss
	}

	latency := time.Since(start)

	if err != nil {
		if types.IsCacheMiss(err) && tc.metrics != nil {
			tc.metrics.RecordMiss(layer, key, latency)
		}
		return nil, err
	}

	if tc.metrics != nil {
		tc.metrics.RecordHit(layer, key, latency)
	}

	return data, nil
}

// Get retrieves a value and deserializes it into dest.
func (tc *TieredCache) Get(ctx context.Context, key string, dest any, opts ...types.Option) error {
	data, err := tc.GetBytes(ctx, key, opts...)
	if err != nil {
		return err
	}

	if err := tc.serializer.Unmarshal(data, dest); err != nil {
		tc.logger.Debug("Deserialization failed", "key", key, "error", err)
		return err
	}

	return nil
}

// getFromBothTiers tries memory first, then the durable tier, promoting
// durable hits into memory with their remaining TTL.
func (tc *TieredCache) getFromBothTiers(ctx context.Context, key string, options *types.CacheOptions) ([]byte, string, error) {
	data, err := tc.memory.Get(ctx, key)
	if err == nil {
		return data, "memory", nil
	}

	if !types.IsCacheMiss(err) {
		tc.logger.Debug("Memory tier error", "key", key, "error", err)
	}

	layer := tc.durable.Name()

	if er, ok := tc.durable.(entryReader); ok {
		e, err := er.getEntry(ctx, key)
		if err != nil {
			return nil, layer, err
		}
		if !options.SkipPromotion {
			tc.promote(key, e.Payload, remainingTTL(e))
		}
		return e.Payload, layer, nil
	}

	data, err = tc.durable.Get(ctx, key)
	if err != nil {
		return nil, layer, err
	}
	if !options.SkipPromotion {
		tc.promote(key, data, 0)
	}
	return data, layer, nil
}

func remainingTTL(e entry) time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(e.ExpiresAt)
}

func (tc *TieredCache) promote(key string, data []byte, ttl time.Duration) {
	tc.runBackground(func(ctx context.Context) {
		var opts *types.CacheOptions
		if ttl > 0 {
			opts = &types.CacheOptions{TTL: ttl}
		}
		if setErr := tc.memory.Set(ctx, key, data, opts); setErr != nil {
			tc.logger.Debug("Failed to promote entry into memory", "key", key, "error", setErr)
		}
	})
}

// SetBytes stores raw bytes under key in the configured tiers.
func (tc *TieredCache) SetBytes(ctx context.Context, key string, data []byte, opts ...types.Option) error {
	if tc.closed.Load() {
		return types.ErrClosed
	}

	if err := tc.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	options := tc.applyDefaults(opts...)

	var setErr error

	switch options.Level {
	case types.LevelMemoryOnly:
		setErr = tc.memory.Set(ctx, key, data, options)

	case types.LevelDurableOnly:
		setErr = tc.setToDurable(ctx, key, data, options)

	case types.LevelMemoryThenDurable, types.LevelAll:
		memErr := tc.memory.Set(ctx, key, data, options)
		durErr := tc.setToDurable(ctx, key, data, options)

		if memErr != nil {
			setErr = memErr
		} else if durErr != nil && !options.FireAndForget {
			if errors.Is(durErr, types.ErrDurableUnavailable) {
				tc.logger.Debug("Durable tier unavailable, wrote to memory only", "key", key)
			} else {
				tc.logger.Warn("Durable SET failed, wrote to memory only",
					"key", key,
					"tier", tc.durable.Name(),
					"error", durErr,
				)
			}
		}
	}

	if tc.metrics != nil {
		tc.metrics.RecordSet(options.Level.String(), key, len(data), time.Since(start))
	}

	return setErr
}

// Set serializes value and stores it under key.
func (tc *TieredCache) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	data, err := tc.serializer.Marshal(value)
	if err != nil {
		return err
	}
	return tc.SetBytes(ctx, key, data, opts...)
}

// setToDurable writes to the durable tier, degrading to memory-only when
// the tier is down and the write is fire-and-forget.
func (tc *TieredCache) setToDurable(ctx context.Context, key string, data []byte, opts *types.CacheOptions) error {
	if !tc.durable.IsAvailable() {
		if opts.FireAndForget {
			return nil
		}
		return types.ErrDurableUnavailable
	}

	return tc.durable.Set(ctx, key, data, opts)
}

// Invalidate removes key from the configured tiers. Removing an absent
// key is not an error.
func (tc *TieredCache) Invalidate(ctx context.Context, key string, opts ...types.Option) error {
	if tc.closed.Load() {
		return types.ErrClosed
	}

	if err := tc.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	options := tc.applyDefaults(opts...)

	var err error

	switch options.Level {
	case types.LevelMemoryOnly:
		err = tc.memory.Delete(ctx, key)

	case types.LevelDurableOnly:
		err = tc.durable.Delete(ctx, key)

	case types.LevelMemoryThenDurable, types.LevelAll:
		memErr := tc.memory.Delete(ctx, key)
		durErr := tc.durable.Delete(ctx, key)
		if memErr != nil {
			err = memErr
		} else if durErr != nil && !errors.Is(durErr, types.ErrDurableUnavailable) {
			err = durErr
		}
	}

	if tc.metrics != nil {
		tc.metrics.RecordDelete(options.Level.String(), key, time.Since(start))
	}

	return err
}

// Contains checks if a live entry exists for key in the configured tiers.
func (tc *TieredCache) Contains(ctx context.Context, key string, opts ...types.Option) (bool, error) {
	if tc.closed.Load() {
		return false, types.ErrClosed
	}

	if err := tc.validateKey(key); err != nil {
		return false, err
	}

	options := tc.applyDefaults(opts...)

	switch options.Level {
	case types.LevelMemoryOnly:
		return tc.memory.Contains(ctx, key)

	case types.LevelDurableOnly:
		return tc.durable.Contains(ctx, key)

	case types.LevelMemoryThenDurable, types.LevelAll:
		exists, err := tc.memory.Contains(ctx, key)
		if err != nil {
			tc.logger.Debug("Memory contains check failed", "key", key, "error", err)
		} else if exists {
			return true, nil
		}
		return tc.durable.Contains(ctx, key)
	}

	return false, nil
}

// Clear removes all entries from the specified cache level.
func (tc *TieredCache) Clear(ctx context.Context, level types.CacheLevel) error {
	if tc.closed.Load() {
		return types.ErrClosed
	}

	var err error

	switch level {
	case types.LevelMemoryOnly:
		err = tc.memory.Clear(ctx)

	case types.LevelDurableOnly:
		err = tc.durable.Clear(ctx)

	case types.LevelAll, types.LevelMemoryThenDurable:
		memErr := tc.memory.Clear(ctx)
		durErr := tc.durable.Clear(ctx)
		if memErr != nil {
			err = memErr
		} else if durErr != nil {
			err = durErr
		}
	}

	return err
}

// MemoryStats returns statistics for the memory tier.
func (tc *TieredCache) MemoryStats() types.MemoryCacheStats {
	return tc.memory.Stats()
}

// DurableStats returns statistics for the durable tier.
func (tc *TieredCache) DurableStats() types.DurableCacheStats {
	return tc.durable.Stats()
}

// DurableBackend returns the name of the durable tier in use.
func (tc *TieredCache) DurableBackend() string {
	return tc.durable.Name()
}

// IsMemoryAvailable returns true if the memory tier is available.
func (tc *TieredCache) IsMemoryAvailable() bool {
	return tc.memory.IsAvailable()
}

// IsDurableAvailable returns true if the durable tier is available.
func (tc *TieredCache) IsDurableAvailable() bool {
	return tc.durable.IsAvailable()
}

// Health returns health metrics for both tiers.
func (tc *TieredCache) Health(ctx context.Context) *types.HealthMetrics {
	metrics := &types.HealthMetrics{
		Timestamp: time.Now(),
	}

	memStats := tc.memory.Stats()
	metrics.Memory = types.MemoryHealthMetrics{
		Status:          types.HealthStatusHealthy,
		Available:       tc.memory.IsAvailable(),
		EntryCount:      tc.memory.EntryCount(),
		SizeBytes:       tc.memory.Size(),
		MaxSizeBytes:    tc.memory.MaxSize(),
		UsagePercentage: tc.memory.UsagePercentage(),
		HitCount:        memStats.Hits,
		MissCount:       memStats.Misses,
		HitRatio:        tc.memory.HitRatio(),
		EvictionCount:   memStats.Evictions,
	}
	if !tc.memory.IsAvailable() {
		metrics.Memory.Status = types.HealthStatusUnhealthy
	}

	durStats := tc.durable.Stats()
	metrics.Durable = types.DurableHealthMetrics{
		Status:        types.HealthStatusHealthy,
		Available:     tc.durable.IsAvailable(),
		Backend:       tc.durable.Name(),
		HitCount:      durStats.Hits,
		MissCount:     durStats.Misses,
		CorruptDrops:  durStats.CorruptDrops,
		PendingWrites: durStats.PendingWrites,
		DroppedWrites: durStats.DroppedWrites,
	}
	if !tc.durable.IsAvailable() {
		metrics.Durable.Status = types.HealthStatusUnhealthy
	}

	switch {
	case metrics.Memory.Status == types.HealthStatusHealthy && metrics.Durable.Status == types.HealthStatusHealthy:
		metrics.Status = types.HealthStatusHealthy
	case metrics.Memory.Status == types.HealthStatusHealthy:
		metrics.Status = types.HealthStatusDegraded
	default:
		metrics.Status = types.HealthStatusUnhealthy
	}

	return metrics
}

// Close releases all resources using the default shutdown timeout.
// It waits for in-flight background promotions before closing the tiers.
func (tc *TieredCache) Close() error {
	return tc.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout releases all resources with a configurable timeout.
// If background operations don't complete within the timeout, it returns
// ErrShutdownTimeout but still proceeds to close the tiers.
func (tc *TieredCache) CloseWithTimeout(timeout time.Duration) error {
	// Acquire bgMu to prevent new background operations from starting.
	// This synchronizes with runBackground so no Add races with Wait.
	tc.bgMu.Lock()
	if tc.closed.Swap(true) {
		tc.bgMu.Unlock()
		return nil
	}
	tc.shutdownCancel()
	tc.bgMu.Unlock()

	tc.logger.Info("Closing tiered cache, waiting for background operations", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		tc.bgWg.Wait()
		close(done)
	}()

	var timedOut bool
	select {
	case <-done:
		tc.logger.Info("Background operations complete, closing cache tiers")
	case <-time.After(timeout):
		tc.logger.Warn("Shutdown timeout exceeded, proceeding with close", "timeout", timeout)
		timedOut = true
	}

	var errs []error

	if timedOut {
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if err := tc.memory.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := tc.durable.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// runBackground executes fn in a background goroutine that is tracked for
// graceful shutdown. The goroutine is not started if the cache is closed.
func (tc *TieredCache) runBackground(fn func(ctx context.Context)) {
	// Hold bgMu while checking closed and adding to the WaitGroup to
	// prevent a race with CloseWithTimeout where Add is called after
	// Wait starts.
	tc.bgMu.Lock()
	if tc.closed.Load() {
		tc.bgMu.Unlock()
		return
	}
	tc.bgWg.Add(1)
	tc.bgMu.Unlock()

	go func() {
		defer tc.bgWg.Done()
		ctx, cancel := context.WithTimeout(tc.shutdownCtx, DefaultBackgroundOpTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (tc *TieredCache) validateKey(key string) error {
	if tc.keyValidator == nil {
		return nil
	}
	return tc.keyValidator.Validate(key)
}

func (tc *TieredCache) applyDefaults(opts ...types.Option) *types.CacheOptions {
	options := types.ApplyOptions(opts...)

	if options.TTL == 0 {
		options.TTL = tc.config.Defaults.TTL
	}

	if options.Level == 0 {
		options.Level = parseCacheLevel(tc.config.Defaults.Level)
	}

	if tc.config.Defaults.FireAndForget && !options.FireAndForget {
		options.FireAndForget = true
	}

	return options
}

func parseCacheLevel(s string) types.CacheLevel {
	switch s {
	case "memory-only":
		return types.LevelMemoryOnly
	case "durable-only":
		return types.LevelDurableOnly
	case "memory-then-durable":
		return types.LevelMemoryThenDurable
	case "all":
		return types.LevelAll
	default:
		return types.LevelMemoryThenDurable
	}
}

// NewSlogAdapter wraps a types.Logger as an slog.Handler so callers can
// plug their own logger into components that log through slog.
func NewSlogAdapter(logger types.Logger) slog.Handler {
	return slogAdapter{logger: logger}
}

//nolint:govet // Simple adapter struct - alignment optimization minimal
type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string // current group prefix from WithGroup calls
}

// Enabled implements slog.Handler.
func (a slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler interface requires passing Record by value
func (a slogAdapter) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)

	for _, attr := range a.attrs {
		key := attr.Key
		if a.group != "" {
			key = a.group + "." + key
		}
		args = append(args, key, attr.Value.Any())
	}

	r.Attrs(func(attr slog.Attr) bool {
		key := attr.Key
		if a.group != "" {
			key = a.group + "." + key
		}
		args = append(args, key, attr.Value.Any())
		return true
	})

	switch r.Level {
	case slog.LevelDebug:
		a.logger.Debug(r.Message, args...)
	case slog.LevelInfo:
		a.logger.Info(r.Message, args...)
	case slog.LevelWarn:
		a.logger.Warn(r.Message, args...)
	case slog.LevelError:
		a.logger.Error(r.Message, args...)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(newAttrs, a.attrs)
	newAttrs = append(newAttrs, attrs...)
	return slogAdapter{
		logger: a.logger,
		attrs:  newAttrs,
		group:  a.group,
	}
}

// WithGroup implements slog.Handler.
func (a slogAdapter) WithGroup(name string) slog.Handler {
	newGroup := name
	if a.group != "" {
		newGroup = a.group + "." + name
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  a.attrs,
		group:  newGroup,
	}
}
