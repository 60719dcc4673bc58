package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

func newTestFileCache(t *testing.T) *FileCache {
	t.Helper()

	fc, err := NewFileCache(config.FileConfig{
		Enabled:    true,
		Dir:        t.TempDir(),
		FileSuffix: ".cache",
	}, nil)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	t.Cleanup(func() { _ = fc.Close() })
	return fc
}

func TestFileCacheSetGet(t *testing.T) {
	fc := newTestFileCache(t)
	ctx := context.Background()

	value := []byte(`{"rate":1.0842}`)
	if err := fc.Set(ctx, "fx:EURUSD", value, &types.CacheOptions{TTL: time.Minute}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := fc.Get(ctx, "fx:EURUSD")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %q, want %q", got, value)
	}
}

func TestFileCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.FileConfig{Enabled: true, Dir: dir, FileSuffix: ".cache"}
	ctx := context.Background()

	fc, err := NewFileCache(cfg, nil)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	if err := fc.Set(ctx, "persist", []byte("survives"), &types.CacheOptions{TTL: time.Hour}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_ = fc.Close()

	fc2, err := NewFileCache(cfg, nil)
	if err != nil {
		t.Fatalf("NewFileCache() reopen error = %v", err)
	}
	defer fc2.Close()

	got, err := fc2.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got) != "survives" {
		t.Errorf("Get() = %q, want %q", got, "survives")
	}
}

func TestFileCacheExpiry(t *testing.T) {
	fc := newTestFileCache(t)
	ctx := context.Background()

	_ = fc.Set(ctx, "short", []byte("v"), &types.CacheOptions{TTL: 30 * time.Millisecond})
	time.Sleep(60 * time.Millisecond)

	if _, err := fc.Get(ctx, "short"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}

	// The expired file is removed on read
	if _, err := os.Stat(fc.pathFor("short")); !os.IsNotExist(err) {
		t.Error("expired file not removed after read")
	}
}

func TestFileCacheCorruptRecordDropped(t *testing.T) {
	fc := newTestFileCache(t)
	ctx := context.Background()

	_ = fc.Set(ctx, "k", []byte("good"), &types.CacheOptions{TTL: time.Minute})

	path := fc.pathFor("k")
	if err := os.WriteFile(path, []byte("not an envelope"), 0o644); err != nil {
		t.Fatalf("corrupting file: %v", err)
	}

	if _, err := fc.Get(ctx, "k"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() of corrupt record error = %v, want ErrCacheMiss", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt file not removed")
	}
	if fc.Stats().CorruptDrops != 1 {
		t.Errorf("CorruptDrops = %d, want 1", fc.Stats().CorruptDrops)
	}
}

func TestFileCacheDelete(t *testing.T) {
	fc := newTestFileCache(t)
	ctx := context.Background()

	_ = fc.Set(ctx, "k", []byte("v"), nil)
	if err := fc.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := fc.Get(ctx, "k"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want ErrCacheMiss", err)
	}
	if err := fc.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete(absent) error = %v, want nil", err)
	}
}

func TestFileCacheKeyHashing(t *testing.T) {
	fc := newTestFileCache(t)
	ctx := context.Background()

	// Keys with path separators and spaces must not escape the cache dir.
	awkward := []string{"../../etc/passwd", "https://api.example.com/v1?x=1&y=2", "key with spaces"}
	for _, key := range awkward {
		if err := fc.Set(ctx, key, []byte(key), nil); err != nil {
			t.Fatalf("Set(%q) error = %v", key, err)
		}
		got, err := fc.Get(ctx, key)
		if err != nil || string(got) != key {
			t.Errorf("Get(%q) = (%q, %v)", key, got, err)
		}
		if filepath.Dir(fc.pathFor(key)) != fc.dir {
			t.Errorf("pathFor(%q) escapes cache dir", key)
		}
	}
}

func TestFileCacheClear(t *testing.T) {
	fc := newTestFileCache(t)
	ctx := context.Background()

	_ = fc.Set(ctx, "a", []byte("1"), nil)
	_ = fc.Set(ctx, "b", []byte("2"), nil)

	if err := fc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := fc.Get(ctx, "a"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get() after clear error = %v, want ErrCacheMiss", err)
	}
}

func TestFileCacheSweep(t *testing.T) {
	fc, err := NewFileCache(config.FileConfig{
		Enabled:       true,
		Dir:           t.TempDir(),
		FileSuffix:    ".cache",
		SweepInterval: 20 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	defer fc.Close()

	ctx := context.Background()
	_ = fc.Set(ctx, "expires", []byte("v"), &types.CacheOptions{TTL: 10 * time.Millisecond})
	_ = fc.Set(ctx, "stays", []byte("v"), &types.CacheOptions{TTL: time.Hour})

	deadline := time.After(1 * time.Second)
	for {
		if _, err := os.Stat(fc.pathFor("expires")); os.IsNotExist(err) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweep did not remove expired file")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, err := os.Stat(fc.pathFor("stays")); err != nil {
		t.Errorf("sweep removed a live file: %v", err)
	}
}

func TestFileCacheClosed(t *testing.T) {
	fc := newTestFileCache(t)
	_ = fc.Close()

	if _, err := fc.Get(context.Background(), "k"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Get() after close error = %v, want ErrClosed", err)
	}
	if err := fc.Set(context.Background(), "k", []byte("v"), nil); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Set() after close error = %v, want ErrClosed", err)
	}
}
