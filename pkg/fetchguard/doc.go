// Package fetchguard provides a resilient read-through fetcher: a tiered
// cache (memory plus a durable tier) composed with a circuit breaker and
// retrying invoker guarding the upstream fetch.
//
// # Features
//
//   - Tiered Caching: fast in-memory tier (bigcache) over a durable tier
//     (file-backed by default, Redis for multi-process deployments)
//   - Per-Entry TTL: every record carries its own expiry, enforced on
//     read in both tiers
//   - Resilience Patterns: circuit breaker, retry with exponential
//     backoff and jitter, and an optional bulkhead
//   - Stampede Suppression: concurrent fetches of one cold key share a
//     single upstream call
//   - Graceful Degradation: a down durable tier or open circuit degrades
//     to memory-backed reads instead of failing
//   - Observability: pluggable metrics with a DataDog StatsD publisher
//
// # Quick Start
//
// Create a fetcher with default configuration:
//
//	fg, err := fetchguard.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fg.Close()
//
// # Fetching
//
// Fetch returns the cached value for a key, or runs the operation under
// the resilience policy and caches the result:
//
//	var quote Quote
//	err := fg.Fetch(ctx, "quote:AAPL", &quote, func(ctx context.Context) (any, error) {
//	    return client.FetchQuote(ctx, "AAPL")
//	})
//
// The operation is retried on transient failure. Once the upstream has
// failed repeatedly the circuit opens and cold-key fetches fail fast
// with ErrCircuitOpen; cached keys keep being served.
//
// # Options
//
// Use functional options to customize behavior per operation:
//
//	fg.Fetch(ctx, key, &dest, op, fetchguard.WithTTL(5*time.Minute))
//	fg.Set(ctx, key, value, fetchguard.WithMemoryOnly())
//
// # Configuration
//
// Load configuration from a JSON file (environment variables prefixed
// FETCHGUARD_ override file values):
//
//	fg, err := fetchguard.NewFromFile("config.json")
//
// Or start from the defaults:
//
//	cfg := fetchguard.Config()
//	cfg.Redis.Enabled = true
//	cfg.Redis.Address = "localhost:6379"
//	cfg.File.Enabled = false
//	fg, err := fetchguard.NewFromConfig(cfg)
//
// # Health Checks
//
// Check the health of the cache tiers and the circuit breaker:
//
//	h := fg.Health(ctx)
//	if h.Status != fetchguard.HealthStatusHealthy {
//	    log.Printf("degraded: circuit=%s", h.Circuit.State)
//	}
//
// # Thread Safety
//
// All operations are safe for concurrent use from multiple goroutines.
package fetchguard
