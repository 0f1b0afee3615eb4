package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWatchNotFound indicates a watch was not found by the given identifier.
	ErrWatchNotFound = errors.New("watch not found")
)

// WatchError wraps watch-related errors with additional context.
type WatchError struct {
	Op      string // Operation being performed (e.g., "WatchByID", "SaveWatch")
	WatchID string
	Err     error
	Message string
}

func (e *WatchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for watch %s: %s (%v)", e.Op, e.WatchID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for watch %s: %v", e.Op, e.WatchID, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for watch errors.
func (e *WatchError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWatchError creates a new watch error with context.
func NewWatchError(op, watchID string, err error) *WatchError {
	return &WatchError{
		Op:      op,
		WatchID: watchID,
		Err:     err,
	}
}

// IsWatchNotFound checks if an error indicates a watch was not found.
func IsWatchNotFound(err error) bool {
	return errors.Is(err, ErrWatchNotFound)
}
