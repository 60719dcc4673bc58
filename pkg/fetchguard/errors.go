package fetchguard

import (
	"github.com/fetchguard/fetchguard/internal/types"
)

// CacheError represents a cache operation error.
type CacheError = types.CacheError

// FetchError wraps the last error observed after a fetch exhausted its
// retry budget.
type FetchError = types.FetchError

var (
	// ErrCacheMiss indicates that a requested key was not found in the cache.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrDurableUnavailable indicates that the durable tier is not available.
	ErrDurableUnavailable = types.ErrDurableUnavailable
	// ErrCircuitOpen indicates that the circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrClosed indicates that the fetcher has been closed.
	ErrClosed = types.ErrClosed
	// ErrWriteQueueFull indicates that the durable write queue is full.
	ErrWriteQueueFull = types.ErrWriteQueueFull
	// ErrBulkheadFull indicates that the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that the bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrSerializationFailed indicates that serialization failed.
	ErrSerializationFailed = types.ErrSerializationFailed
	// ErrInvalidKey indicates that a cache key is invalid.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrEntryCorrupt indicates that a stored entry failed to decode.
	ErrEntryCorrupt = types.ErrEntryCorrupt
)

// NewCacheError creates a new cache error with operation, key, layer, and underlying error.
func NewCacheError(op, key, layer string, err error) *CacheError {
	return types.NewCacheError(op, key, layer, err)
}

// IsCacheMiss returns true if the error is a cache miss.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsDurableUnavailable returns true if the error indicates the durable tier is unavailable.
func IsDurableUnavailable(err error) bool {
	return types.IsDurableUnavailable(err)
}

// IsCircuitOpen returns true if the error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}

// IsFetchFailure returns true if the error is a fetch that failed after
// all retry attempts. Use errors.As with *FetchError to inspect the key
// and attempt count.
func IsFetchFailure(err error) bool {
	return types.IsFetchFailure(err)
}

// IsInvalidKey returns true if the error indicates a rejected cache key.
func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}

// IsCancellation returns true if the error stems from context
// cancellation or deadline expiry.
func IsCancellation(err error) bool {
	return types.IsCancellation(err)
}
