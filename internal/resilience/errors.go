package resilience

import (
	"errors"

	"github.com/fetchguard/fetchguard/internal/types"
)

// Re-export errors from types package for convenience within the resilience
// package and its consumers.
var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsCircuitOpen returns true if the error is a circuit open error.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsBulkheadError returns true if the error is a bulkhead error.
func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable determines if an error is transient and worth retrying.
// The observed provider code retried unconditionally on any error; this
// classifier keeps that behavior except for errors where a retry can never
// succeed (circuit open, bulkhead rejection, caller cancellation).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsCircuitOpen(err) {
		return false
	}

	if IsBulkheadError(err) {
		return false
	}

	if types.IsCancellation(err) {
		return false
	}

	return true
}
