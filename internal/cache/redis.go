package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fetchguard/fetchguard/internal/config"
	"github.com/fetchguard/fetchguard/internal/types"
)

const (
	disconnectErrorThreshold = 5
)

// RedisCache is the Redis-backed durable tier, used in place of the file
// tier when several processes should share one cache. Entries carry the
// same envelope as the other tiers; Redis server-side expiry acts as a
// backstop so abandoned keys do not accumulate.
//
// A lost connection degrades rather than fails: the tier reports
// ErrDurableUnavailable and a health check worker restores it once the
// server answers pings again.
type RedisCache struct {
	client *redis.Client
	config config.RedisConfig
	logger *slog.Logger

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	writeQueue    chan writeOp
	pendingWrites atomic.Int32
	droppedWrites atomic.Int64
	stopCh        chan struct{}
	wg            sync.WaitGroup

	healthCheckStopCh chan struct{}
	healthCheckWg     sync.WaitGroup

	hits         atomic.Int64
	misses       atomic.Int64
	sets         atomic.Int64
	deletes      atomic.Int64
	corruptDrops atomic.Int64
}

type writeOp struct {
	key   string
	value []byte
	ttl   time.Duration
}

// NewRedisCache creates the Redis durable tier. A failed initial
// connection is logged but not fatal; the tier starts degraded and the
// health check worker brings it up when the server becomes reachable.
func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	client := redis.NewClient(opts)

	rc := &RedisCache{
		client:            client,
		config:            cfg,
		logger:            logger.With("component", "redis-cache"),
		writeQueue:        make(chan writeOp, cfg.MaxPendingWrites),
		stopCh:            make(chan struct{}),
		healthCheckStopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn("Redis initial connection failed", "error", err)
		rc.setError(err)
		// Don't return error - allow graceful degradation
	} else {
		rc.connected.Store(true)
		rc.logger.Info("Redis connected", "address", cfg.Address)
	}

	rc.wg.Add(1)
	go rc.asyncWriteWorker()

	if cfg.HealthCheckInterval > 0 {
		rc.healthCheckWg.Add(1)
		go rc.healthCheckWorker()
	}

	return rc, nil
}

func (c *RedisCache) Name() string {
	return "redis"
}

func (c *RedisCache) IsAvailable() bool {
	return c.connected.Load()
}

func (c *RedisCache) prefixKey(key string) string {
	return c.config.KeyPrefix + key
}

// Get retrieves a value from Redis. Records that fail the envelope check
// are deleted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := c.getEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.Payload, nil
}

func (c *RedisCache) getEntry(ctx context.Context, key string) (entry, error) {
	if !c.connected.Load() {
		return entry{}, types.ErrDurableUnavailable
	}

	prefixedKey := c.prefixKey(key)

	data, err := c.client.Get(ctx, prefixedKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return entry{}, types.ErrCacheMiss
		}
		c.handleError(err)
		return entry{}, types.NewCacheError("Get", key, "redis", err)
	}

	e, err := decodeEntry(data)
	if err != nil {
		c.corruptDrops.Add(1)
		c.misses.Add(1)
		_ = c.client.Del(ctx, prefixedKey).Err()
		c.logger.Warn("Dropped corrupt Redis entry", "key", key)
		return entry{}, types.ErrCacheMiss
	}

	if e.isExpired(time.Now()) {
		_ = c.client.Del(ctx, prefixedKey).Err()
		c.misses.Add(1)
		return entry{}, types.ErrCacheMiss
	}

	c.hits.Add(1)
	c.clearError()

	return e, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if !c.connected.Load() {
		return types.ErrDurableUnavailable
	}

	if opts == nil {
		opts = types.DefaultOptions()
	}

	ttl := c.config.DefaultTTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	prefixedKey := c.prefixKey(key)
	data := encodeEntry(newEntry(value, ttl))

	if opts.FireAndForget {
		return c.setAsync(prefixedKey, data, ttl)
	}

	if err := c.client.Set(ctx, prefixedKey, data, ttl).Err(); err != nil {
		c.handleError(err)
		return types.NewCacheError("Set", key, "redis", err)
	}

	c.sets.Add(1)
	c.clearError()

	return nil
}

func (c *RedisCache) setAsync(key string, value []byte, ttl time.Duration) error {
	select {
	case c.writeQueue <- writeOp{key: key, value: value, ttl: ttl}:
		c.pendingWrites.Add(1)
		return nil
	default:
		c.droppedWrites.Add(1)
		c.logger.Warn("Write queue full, dropping SET",
			"key", key,
			"dropped_total", c.droppedWrites.Load(),
		)
		return types.ErrWriteQueueFull
	}
}

func (c *RedisCache) asyncWriteWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			for {
				select {
				case op := <-c.writeQueue:
					c.executeWrite(op)
				default:
					return
				}
			}
		case op := <-c.writeQueue:
			c.executeWrite(op)
		}
	}
}

func (c *RedisCache) executeWrite(op writeOp) {
	defer c.pendingWrites.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, op.key, op.value, op.ttl).Err(); err != nil {
		c.handleError(err)
		c.logger.Debug("Async SET failed", "key", op.key, "error", err)
	} else {
		c.sets.Add(1)
		c.clearError()
	}
}

func (c *RedisCache) healthCheckWorker() {
	defer c.healthCheckWg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.healthCheckStopCh:
			return
		case <-ticker.C:
			c.performHealthCheck()
		}
	}
}

func (c *RedisCache) performHealthCheck() {
	wasConnected := c.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()

	err := c.client.Ping(ctx).Err()
	if err != nil {
		if wasConnected {
			c.logger.Warn("Redis health check failed", "error", err)
			c.setError(err)
		}
		return
	}

	if !wasConnected {
		c.connected.Store(true)
		c.errorCount.Store(0)
		c.logger.Info("Redis connection restored via health check")
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.connected.Load() {
		return types.ErrDurableUnavailable
	}

	prefixedKey := c.prefixKey(key)

	if err := c.client.Del(ctx, prefixedKey).Err(); err != nil {
		c.handleError(err)
		return types.NewCacheError("Delete", key, "redis", err)
	}

	c.deletes.Add(1)
	c.clearError()

	return nil
}

func (c *RedisCache) Contains(ctx context.Context, key string) (bool, error) {
	if !c.connected.Load() {
		return false, types.ErrDurableUnavailable
	}

	prefixedKey := c.prefixKey(key)

	exists, err := c.client.Exists(ctx, prefixedKey).Result()
	if err != nil {
		c.handleError(err)
		return false, types.NewCacheError("Contains", key, "redis", err)
	}

	c.clearError()
	return exists > 0, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if !c.connected.Load() {
		return types.ErrDurableUnavailable
	}

	pattern := c.prefixKey("*")

	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err)
			return types.NewCacheError("Clear", pattern, "redis", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err)
				return types.NewCacheError("Clear", pattern, "redis", err)
			}
			deleted += int64(len(keys))
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Cleared keys", "pattern", pattern, "deleted", deleted)
	c.clearError()
	return nil
}

func (c *RedisCache) Close() error {
	c.connected.Store(false)

	close(c.healthCheckStopCh)
	c.healthCheckWg.Wait()

	close(c.stopCh)
	c.wg.Wait()

	return c.client.Close()
}

// Stats returns durable tier statistics.
func (c *RedisCache) Stats() types.DurableCacheStats {
	return types.DurableCacheStats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Sets:          c.sets.Load(),
		Deletes:       c.deletes.Load(),
		CorruptDrops:  c.corruptDrops.Load(),
		PendingWrites: int(c.pendingWrites.Load()),
		DroppedWrites: c.droppedWrites.Load(),
	}
}

func (c *RedisCache) handleError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastError = err
	c.lastErrorTime = time.Now()
	count := c.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if c.connected.CompareAndSwap(true, false) {
			c.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (c *RedisCache) clearError() {
	if c.errorCount.Swap(0) > 0 {
		if c.connected.CompareAndSwap(false, true) {
			c.logger.Info("Redis connection restored")
		}
	}
}

func (c *RedisCache) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = err
	c.lastErrorTime = time.Now()
	c.connected.Store(false)
}

// LastError returns the most recent connection error and when it occurred.
func (c *RedisCache) LastError() (error, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError, c.lastErrorTime
}

// Ping checks Redis connectivity directly.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ types.DurableCacheLayer = (*RedisCache)(nil)
