package fetchguard

import (
	"github.com/fetchguard/fetchguard/internal/types"
)

type (
	// CacheLevel specifies which cache tiers to use for an operation.
	CacheLevel = types.CacheLevel
	// CacheEntry represents a cached value with metadata.
	CacheEntry = types.CacheEntry
	// CacheOptions contains options for cache operations.
	CacheOptions = types.CacheOptions
	// MemoryCacheStats contains statistics about the memory tier.
	MemoryCacheStats = types.MemoryCacheStats
	// DurableCacheStats contains statistics about the durable tier.
	DurableCacheStats = types.DurableCacheStats
	// Serializer provides serialization and deserialization operations.
	Serializer = types.Serializer
	// MetricsRecorder provides operations for recording cache and fetch metrics.
	MetricsRecorder = types.MetricsRecorder
	// Logger provides logging operations.
	Logger = types.Logger
	// Publisher ships recorded metrics to an external sink.
	Publisher = types.Publisher
	// PublisherHealthMetrics is the health payload handed to a Publisher.
	PublisherHealthMetrics = types.PublisherHealthMetrics
)

const (
	// LevelMemoryOnly uses only the in-memory cache tier.
	LevelMemoryOnly = types.LevelMemoryOnly
	// LevelDurableOnly uses only the durable cache tier.
	LevelDurableOnly = types.LevelDurableOnly
	// LevelMemoryThenDurable checks memory first, then falls back to the durable tier.
	LevelMemoryThenDurable = types.LevelMemoryThenDurable
	// LevelAll uses all available cache tiers.
	LevelAll = types.LevelAll
)

// DefaultOptions returns a default CacheOptions configuration.
func DefaultOptions() *CacheOptions {
	return types.DefaultOptions()
}
