package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates all systems operating normally.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates partial functionality (e.g., durable tier down).
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates critical failure.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthMetrics contains overall health information for the fetcher.
type HealthMetrics struct {
	Timestamp time.Time
	Memory    MemoryHealthMetrics
	Durable   DurableHealthMetrics
	Circuit   CircuitHealthMetrics
	Status    HealthStatus
}

// MemoryHealthMetrics contains memory tier health details.
type MemoryHealthMetrics struct {
	Status          HealthStatus
	Available       bool
	EntryCount      int
	SizeBytes       int64
	MaxSizeBytes    int64
	UsagePercentage float64
	HitCount        int64
	MissCount       int64
	HitRatio        float64
	EvictionCount   int64
}

// DurableHealthMetrics contains durable tier health details.
type DurableHealthMetrics struct {
	Status        HealthStatus
	Available     bool
	Backend       string
	HitCount      int64
	MissCount     int64
	CorruptDrops  int64
	PendingWrites int
	DroppedWrites int64
}

// CircuitHealthMetrics exposes breaker state for observability.
type CircuitHealthMetrics struct {
	State            string
	ConsecutiveFails int
	HalfOpenSuccs    int
}
