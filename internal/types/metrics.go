package types

import "time"

// MetricsSnapshot contains a point-in-time view of fetcher metrics.
//
//nolint:govet // Snapshot struct - logical grouping prioritized over alignment
type MetricsSnapshot struct {
	Timestamp time.Time

	MemoryHits    int64
	MemoryMisses  int64
	DurableHits   int64
	DurableMisses int64

	GetCount    int64
	SetCount    int64
	DeleteCount int64
	ErrorCount  int64

	// Fetch pipeline outcomes
	FetchCacheHits int64
	FetchUpstream  int64
	FetchRejected  int64
	FetchErrors    int64
	FetchCanceled  int64

	CircuitStateChanges int64

	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64
}

// TotalHitRatio returns the cache hit ratio across both tiers.
func (s MetricsSnapshot) TotalHitRatio() float64 {
	hits := s.MemoryHits + s.DurableHits
	total := hits + s.MemoryMisses + s.DurableMisses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Publisher sends metrics to an external backend (StatsD, logs).
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text string, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}

// PublisherHealthMetrics is the condensed health view handed to publishers.
type PublisherHealthMetrics struct {
	MemoryUsedBytes       int64
	MemoryLimitBytes      int64
	MemoryUsagePercentage float64
	TotalEntries          int64
	HitRatio              float64
	AverageLatencyMs      float64
	CircuitState          string
	DurableAvailable      bool
}
