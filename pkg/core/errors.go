// Package core provides the main DreamMem client and memory management functionality.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrValidation indicates that the provided input is invalid.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates that the reasoning backend could not
	// be reached or returned a failure.
	ErrBackendUnavailable = errors.New("reasoning backend unavailable")

	// ErrBackendTimeout indicates that the reasoning backend did not
	// respond within the configured timeout.
	ErrBackendTimeout = errors.New("reasoning backend timeout")

	// ErrIndexInconsistency indicates that an index disagrees with the
	// record store.
	ErrIndexInconsistency = errors.New("index inconsistent with record store")

	// ErrConsolidationRunning indicates that a consolidation cycle is
	// already in progress.
	ErrConsolidationRunning = errors.New("consolidation already running")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Save",
//	    Err: ErrValidation,
//	}
//	// Error() returns: "dreammem: Save: invalid input"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "dreammem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("dreammem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Save", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Save", "Search", "Consolidate")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
