package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

// FileCache is the default durable tier: one file per key under a single
// directory, so entries survive process restarts without any external
// service. Writes go to a temp file and are renamed into place, which
// keeps concurrent readers from ever observing a partial record.
//
// Corrupt or truncated files are deleted on read and reported as a miss.
// An optional background sweep removes expired files; with the sweep
// disabled, expired entries are still evicted lazily on read.
type FileCache struct {
	config config.FileConfig
	logger *slog.Logger
	dir    string

	hits         atomic.Int64
	misses       atomic.Int64
	sets         atomic.Int64
	deletes      atomic.Int64
	corruptDrops atomic.Int64
	sweptEntries atomic.Int64

	sweepStopCh chan struct{}
	sweepWg     sync.WaitGroup

	closed atomic.Bool
}

// NewFileCache creates the file-backed durable tier, creating the cache
// directory if needed.
func NewFileCache(cfg config.FileConfig, logger *slog.Logger) (*FileCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "fetchguard")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewCacheError("Init", "", "file", err)
	}

	if cfg.FileSuffix == "" {
		cfg.FileSuffix = ".cache"
	}

	fc := &FileCache{
		config:      cfg,
		logger:      logger.With("component", "file-cache"),
		dir:         dir,
		sweepStopCh: make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		fc.sweepWg.Add(1)
		go fc.sweepWorker()
	}

	fc.logger.Info("File cache ready", "dir", dir)
	return fc, nil
}

// Name returns the cache layer name.
func (c *FileCache) Name() string {
	return "file"
}

// IsAvailable returns true if the cache is not closed.
func (c *FileCache) IsAvailable() bool {
	return !c.closed.Load()
}

// Keys are hashed so arbitrary strings (URLs, paths, whitespace) map to
// safe fixed-length filenames.
func (c *FileCache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+c.config.FileSuffix)
}

// Get retrieves a value from disk. Expired entries are removed and
// reported as a miss; unreadable records are dropped the same way.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := c.getEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.Payload, nil
}

func (c *FileCache) getEntry(ctx context.Context, key string) (entry, error) {
	if c.closed.Load() {
		return entry{}, types.ErrClosed
	}

	path := c.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.misses.Add(1)
			return entry{}, types.ErrCacheMiss
		}
		return entry{}, types.NewCacheError("Get", key, "file", err)
	}

	e, err := decodeEntry(data)
	if err != nil {
		c.corruptDrops.Add(1)
		c.misses.Add(1)
		_ = os.Remove(path)
		c.logger.Warn("Dropped corrupt cache file", "key", key, "path", path)
		return entry{}, types.ErrCacheMiss
	}

	if e.isExpired(time.Now()) {
		_ = os.Remove(path)
		c.misses.Add(1)
		return entry{}, types.ErrCacheMiss
	}

	c.hits.Add(1)
	return e, nil
}

// Set writes a value to disk via a temp file and atomic rename.
func (c *FileCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if opts == nil {
		opts = types.DefaultOptions()
	}

	data := encodeEntry(newEntry(value, opts.TTL))
	path := c.pathFor(key)

	tmp, err := os.CreateTemp(c.dir, "write-*.tmp")
	if err != nil {
		return types.NewCacheError("Set", key, "file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return types.NewCacheError("Set", key, "file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return types.NewCacheError("Set", key, "file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return types.NewCacheError("Set", key, "file", err)
	}

	c.sets.Add(1)
	return nil
}

// Delete removes a key's file. Missing files are not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := os.Remove(c.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return types.NewCacheError("Delete", key, "file", err)
	}

	c.deletes.Add(1)
	return nil
}

// Contains checks if a live entry exists for key.
func (c *FileCache) Contains(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, types.NewCacheError("Contains", key, "file", err)
	}

	e, err := decodeEntry(data)
	if err != nil || e.isExpired(time.Now()) {
		return false, nil
	}
	return true, nil
}

// Clear removes every cache file in the directory.
func (c *FileCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+c.config.FileSuffix))
	if err != nil {
		return types.NewCacheError("Clear", "", "file", err)
	}
	for _, path := range matches {
		_ = os.Remove(path)
	}
	return nil
}

func (c *FileCache) sweepWorker() {
	defer c.sweepWg.Done()

	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepStopCh:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *FileCache) sweepExpired() {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+c.config.FileSuffix))
	if err != nil {
		c.logger.Warn("Sweep failed to list cache directory", "error", err)
		return
	}

	now := time.Now()
	var swept int64
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		e, err := decodeEntry(data)
		if err != nil {
			if os.Remove(path) == nil {
				c.corruptDrops.Add(1)
			}
			continue
		}
		if e.isExpired(now) {
			if os.Remove(path) == nil {
				swept++
			}
		}
	}

	if swept > 0 {
		c.sweptEntries.Add(swept)
		c.logger.Debug("Swept expired cache files", "count", swept)
	}
}

// Close stops the sweep worker. Files on disk are left in place so the
// cache is warm on the next start.
func (c *FileCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.sweepStopCh)
	c.sweepWg.Wait()
	return nil
}

// Stats returns durable tier statistics.
func (c *FileCache) Stats() types.DurableCacheStats {
	return types.DurableCacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Sets:         c.sets.Load(),
		Deletes:      c.deletes.Load(),
		CorruptDrops: c.corruptDrops.Load(),
		SweptEntries: c.sweptEntries.Load(),
	}
}

var _ types.DurableCacheLayer = (*FileCache)(nil)
