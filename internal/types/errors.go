package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrCacheMiss           = errors.New("fetchguard: key not found")
	ErrDurableUnavailable  = errors.New("fetchguard: durable tier unavailable")
	ErrCircuitOpen         = errors.New("fetchguard: circuit breaker open")
	ErrClosed              = errors.New("fetchguard: closed")
	ErrWriteQueueFull      = errors.New("fetchguard: write queue full")
	ErrBulkheadFull        = errors.New("fetchguard: bulkhead at capacity")
	ErrBulkheadTimeout     = errors.New("fetchguard: bulkhead timeout")
	ErrSerializationFailed = errors.New("fetchguard: serialization failed")
	ErrInvalidKey          = errors.New("fetchguard: invalid key")
	ErrEntryCorrupt        = errors.New("fetchguard: corrupt cache entry")
	ErrShutdownTimeout     = errors.New("fetchguard: shutdown timeout waiting for background operations")
)

type CacheError struct {
	Op    string
	Key   string
	Layer string
	Err   error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Layer, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Layer, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{
		Op:    op,
		Key:   key,
		Layer: layer,
		Err:   err,
	}
}

// FetchError wraps the last error observed after a fetch exhausted its
// retry budget. Callers distinguish it from ErrCircuitOpen (operation
// never attempted) and from context errors (caller aborted).
type FetchError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q failed after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(key string, attempts int, err error) *FetchError {
	return &FetchError{Key: key, Attempts: attempts, Err: err}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsDurableUnavailable(err error) bool {
	return errors.Is(err, ErrDurableUnavailable)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsCorrupt(err error) bool {
	return errors.Is(err, ErrEntryCorrupt)
}

// IsFetchFailure reports whether err is a transient fetch failure, i.e. the
// operation was attempted and failed after all retries.
func IsFetchFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cache misses are not retryable - the key doesn't exist
	if IsCacheMiss(err) {
		return false
	}

	// Circuit open is not retryable - need to wait for recovery
	if IsCircuitOpen(err) {
		return false
	}

	// Caller-requested cancellation must stop the retry loop
	if IsCancellation(err) {
		return false
	}

	if errors.Is(err, ErrClosed) {
		return false
	}

	if errors.Is(err, ErrInvalidKey) {
		return false
	}

	// Most other errors (network, timeout) are retryable
	return true
}
