package cache

import (
	"context"

	"github.com/fetchguard/fetchguard/internal/types"
)

// DisabledMemoryCache is a no-op memory tier used when the memory cache
// is disabled. Every read is a miss and writes are silently discarded.
type DisabledMemoryCache struct{}

// NewDisabledMemoryCache creates a disabled memory cache.
func NewDisabledMemoryCache() *DisabledMemoryCache {
	return &DisabledMemoryCache{}
}

func (c *DisabledMemoryCache) Name() string      { return "memory-disabled" }
func (c *DisabledMemoryCache) IsAvailable() bool { return false }

func (c *DisabledMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrCacheMiss
}

func (c *DisabledMemoryCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	return nil
}

func (c *DisabledMemoryCache) Delete(ctx context.Context, key string) error { return nil }

func (c *DisabledMemoryCache) Contains(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (c *DisabledMemoryCache) Clear(ctx context.Context) error { return nil }
func (c *DisabledMemoryCache) Close() error                    { return nil }

func (c *DisabledMemoryCache) Stats() types.MemoryCacheStats { return types.MemoryCacheStats{} }
func (c *DisabledMemoryCache) EntryCount() int               { return 0 }
func (c *DisabledMemoryCache) Size() int64                   { return 0 }
func (c *DisabledMemoryCache) MaxSize() int64                { return 0 }
func (c *DisabledMemoryCache) UsagePercentage() float64      { return 0 }
func (c *DisabledMemoryCache) HitRatio() float64             { return 0 }

var _ types.MemoryCacheLayer = (*DisabledMemoryCache)(nil)

// DisabledDurableCache is a no-op durable tier used for memory-only
// deployments or when the configured backend cannot be created.
type DisabledDurableCache struct{}

// NewDisabledDurableCache creates a disabled durable cache.
func NewDisabledDurableCache() *DisabledDurableCache {
	return &DisabledDurableCache{}
}

func (c *DisabledDurableCache) Name() string      { return "durable-disabled" }
func (c *DisabledDurableCache) IsAvailable() bool { return false }

func (c *DisabledDurableCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrCacheMiss
}

func (c *DisabledDurableCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	return nil
}

func (c *DisabledDurableCache) Delete(ctx context.Context, key string) error { return nil }

func (c *DisabledDurableCache) Contains(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (c *DisabledDurableCache) Clear(ctx context.Context) error { return nil }
func (c *DisabledDurableCache) Close() error                    { return nil }

func (c *DisabledDurableCache) Stats() types.DurableCacheStats { return types.DurableCacheStats{} }

var _ types.DurableCacheLayer = (*DisabledDurableCache)(nil)
