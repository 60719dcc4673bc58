package fetchguard

import (
	"github.com/fetchguard/fetchguard/internal/types"
)

// Re-export health types from internal/types.
type (
	// HealthStatus represents the overall health state.
	HealthStatus = types.HealthStatus

	// HealthMetrics contains overall fetcher health information.
	HealthMetrics = types.HealthMetrics

	// MemoryHealthMetrics contains memory tier health details.
	MemoryHealthMetrics = types.MemoryHealthMetrics

	// DurableHealthMetrics contains durable tier health details.
	DurableHealthMetrics = types.DurableHealthMetrics

	// CircuitHealthMetrics contains circuit breaker health details.
	CircuitHealthMetrics = types.CircuitHealthMetrics

	// MetricsSnapshot contains a point-in-time view of fetcher metrics.
	MetricsSnapshot = types.MetricsSnapshot
)

// Re-export health status constants.
const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)
