package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

// MemoryCache implements the fast in-memory tier using BigCache.
//
// BigCache evicts on a single global LifeWindow, so per-entry TTLs are
// enforced here: every record is wrapped in an envelope carrying its own
// expiry, checked on read. The LifeWindow acts as an upper bound that
// reclaims space for entries nobody reads again.
type MemoryCache struct {
	cache  *bigcache.BigCache
	config config.MemoryConfig
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64

	closed atomic.Bool
}

// NewMemoryCache creates a new memory cache with the given configuration.
func NewMemoryCache(cfg config.MemoryConfig, logger *slog.Logger) (*MemoryCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mc := &MemoryCache{
		config: cfg,
		logger: logger.With("component", "memory-cache"),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         cfg.DefaultTTL,
		CleanWindow:        cfg.CleanupInterval,
		MaxEntriesInWindow: 1000 * 10 * 60, // Estimated entries in LifeWindow
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				mc.evictions.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}

	mc.cache = bc
	return mc, nil
}

// Name returns the cache layer name.
func (c *MemoryCache) Name() string {
	return "memory"
}

// IsAvailable returns true if the cache is not closed.
func (c *MemoryCache) IsAvailable() bool {
	return !c.closed.Load()
}

// Get retrieves a value from the memory cache. Entries past their own
// expiry are deleted and reported as a miss.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := c.getEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.Payload, nil
}

func (c *MemoryCache) getEntry(ctx context.Context, key string) (entry, error) {
	if c.closed.Load() {
		return entry{}, types.ErrClosed
	}

	data, err := c.cache.Get(key)
	if err != nil {
		if err == bigcache.ErrEntryNotFound {
			c.misses.Add(1)
			return entry{}, types.ErrCacheMiss
		}
		return entry{}, types.NewCacheError("Get", key, "memory", err)
	}

	e, err := decodeEntry(data)
	if err != nil {
		_ = c.cache.Delete(key)
		c.misses.Add(1)
		return entry{}, types.ErrCacheMiss
	}

	if e.isExpired(time.Now()) {
		_ = c.cache.Delete(key)
		c.misses.Add(1)
		return entry{}, types.ErrCacheMiss
	}

	c.hits.Add(1)
	return e, nil
}

// Set stores a value in the memory cache with the TTL from opts.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	ttl := c.config.DefaultTTL
	if opts != nil && opts.TTL > 0 {
		ttl = opts.TTL
	}

	if err := c.cache.Set(key, encodeEntry(newEntry(value, ttl))); err != nil {
		return types.NewCacheError("Set", key, "memory", err)
	}

	c.sets.Add(1)
	return nil
}

// Delete removes a value from the memory cache. Missing keys are not
// an error.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := c.cache.Delete(key); err != nil {
		if err != bigcache.ErrEntryNotFound {
			return types.NewCacheError("Delete", key, "memory", err)
		}
	}

	c.deletes.Add(1)
	return nil
}

// Contains checks if a live (non-expired) entry exists for key.
func (c *MemoryCache) Contains(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	data, err := c.cache.Get(key)
	if err != nil {
		if err == bigcache.ErrEntryNotFound {
			return false, nil
		}
		return false, err
	}

	e, err := decodeEntry(data)
	if err != nil || e.isExpired(time.Now()) {
		return false, nil
	}
	return true, nil
}

// Clear removes all entries from the memory cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	return c.cache.Reset()
}

// Close closes the memory cache and releases resources.
func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cache.Close()
}

// Stats returns memory cache statistics.
func (c *MemoryCache) Stats() types.MemoryCacheStats {
	return types.MemoryCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
	}
}

// EntryCount returns the number of entries in the memory cache.
func (c *MemoryCache) EntryCount() int {
	return c.cache.Len()
}

// Size returns the current size of the memory cache in bytes.
func (c *MemoryCache) Size() int64 {
	return int64(c.cache.Capacity())
}

// MaxSize returns the maximum size of the memory cache in bytes.
func (c *MemoryCache) MaxSize() int64 {
	return int64(c.config.MaxSizeMB) * 1024 * 1024
}

// UsagePercentage returns the memory cache usage as a percentage.
func (c *MemoryCache) UsagePercentage() float64 {
	maxBytes := c.MaxSize()
	if maxBytes == 0 {
		return 0
	}
	return float64(c.Size()) / float64(maxBytes) * 100
}

// HitRatio returns the cache hit ratio.
func (c *MemoryCache) HitRatio() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug("bigcache: "+format, args...)
}

var _ types.MemoryCacheLayer = (*MemoryCache)(nil)
