package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()

	mc, err := NewMemoryCache(config.MemoryConfig{
		Enabled:         true,
		MaxSizeMB:       16,
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Second,
		Shards:          64,
		MaxEntrySize:    1024 * 1024,
	}, nil)
	if err != nil {
		t.Fatalf("NewMemoryCache() error = %v", err)
	}
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCacheSetGet(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	value := []byte(`{"id":1}`)
	if err := mc.Set(ctx, "user:1", value, nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := mc.Get(ctx, "user:1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %q, want %q", got, value)
	}

	stats := mc.Stats()
	if stats.Hits != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 set", stats)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := newTestMemoryCache(t)

	_, err := mc.Get(context.Background(), "absent")
	if !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
	if mc.Stats().Misses != 1 {
		t.Errorf("misses = %d, want 1", mc.Stats().Misses)
	}
}

func TestMemoryCachePerEntryTTL(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	// Entry TTL shorter than the cache-wide LifeWindow still wins.
	err := mc.Set(ctx, "volatile", []byte("v"), &types.CacheOptions{TTL: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := mc.Get(ctx, "volatile"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := mc.Get(ctx, "volatile"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", []byte("v"), nil)
	if err := mc.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := mc.Get(ctx, "k"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want ErrCacheMiss", err)
	}

	// Deleting an absent key is not an error
	if err := mc.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(absent) error = %v, want nil", err)
	}
}

func TestMemoryCacheContains(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", []byte("v"), nil)

	exists, err := mc.Contains(ctx, "k")
	if err != nil || !exists {
		t.Errorf("Contains(k) = (%v, %v), want (true, nil)", exists, err)
	}

	exists, err = mc.Contains(ctx, "absent")
	if err != nil || exists {
		t.Errorf("Contains(absent) = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestMemoryCacheClear(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "a", []byte("1"), nil)
	_ = mc.Set(ctx, "b", []byte("2"), nil)

	if err := mc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if mc.EntryCount() != 0 {
		t.Errorf("EntryCount() = %d after clear, want 0", mc.EntryCount())
	}
}

func TestMemoryCacheClosed(t *testing.T) {
	mc := newTestMemoryCache(t)
	_ = mc.Close()

	if _, err := mc.Get(context.Background(), "k"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Get() after close error = %v, want ErrClosed", err)
	}
	if err := mc.Set(context.Background(), "k", []byte("v"), nil); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Set() after close error = %v, want ErrClosed", err)
	}
	if mc.IsAvailable() {
		t.Error("IsAvailable() = true after close")
	}

	// Double close is safe
	if err := mc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryCacheHitRatio(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", []byte("v"), nil)
	_, _ = mc.Get(ctx, "k")
	_, _ = mc.Get(ctx, "absent")

	if got := mc.HitRatio(); got != 0.5 {
		t.Errorf("HitRatio() = %v, want 0.5", got)
	}
}
