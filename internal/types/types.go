// Package types provides shared types for the fetchguard library.
// This package breaks import cycles between pkg/fetchguard and internal/cache.
package types

import "time"

type CacheLevel int

const (
	LevelMemoryOnly CacheLevel = iota + 1
	LevelDurableOnly
	LevelMemoryThenDurable
	LevelAll
)

func (l CacheLevel) String() string {
	switch l {
	case LevelMemoryOnly:
		return "memory-only"
	case LevelDurableOnly:
		return "durable-only"
	case LevelMemoryThenDurable:
		return "memory-then-durable"
	case LevelAll:
		return "all"
	default:
		return "unknown"
	}
}

func (l CacheLevel) IncludesMemory() bool {
	return l == LevelMemoryOnly || l == LevelMemoryThenDurable || l == LevelAll
}

func (l CacheLevel) IncludesDurable() bool {
	return l == LevelDurableOnly || l == LevelMemoryThenDurable || l == LevelAll
}

type CacheOptions struct {
	TTL           time.Duration
	Level         CacheLevel
	FireAndForget bool
	SkipPromotion bool
}

func DefaultOptions() *CacheOptions {
	return &CacheOptions{
		TTL: 5 * time.Minute,
	}
}

// CacheEntry is the metadata view of a stored record, as surfaced to
// callers inspecting the cache. The wire representation lives in
// internal/cache.
type CacheEntry struct {
	Key       string
	Value     []byte
	TTL       time.Duration
	StoredAt  time.Time
	ExpiresAt time.Time
}

func (e *CacheEntry) IsExpired() bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(e.ExpiresAt)
}

type MemoryCacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
}

type DurableCacheStats struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Deletes       int64
	CorruptDrops  int64
	SweptEntries  int64
	PendingWrites int
	DroppedWrites int64
}
