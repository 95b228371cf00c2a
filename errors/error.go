package errors

import (
	"fmt"
)

// InvalidArgumentError occurs when a scheduler is constructed from inconsistent inputs
type InvalidArgumentError struct{ Reason string }

// Error returns a textual representation of this InvalidArgumentError
func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("Invalid argument: %s", e.Reason)
}

// IllegalStateError occurs when a scheduler, or one of its collaborators, is used out of sequence.
// It indicates a broken contract rather than a recoverable condition.
type IllegalStateError struct{ Reason string }

// Error returns a textual representation of this IllegalStateError
func (e IllegalStateError) Error() string {
	return fmt.Sprintf("Illegal state: %s", e.Reason)
}

// NoMoreSplitsError occurs when a SplitSource is asked for a batch after it has finished
type NoMoreSplitsError struct{}

// Error returns a textual representation of this NoMoreSplitsError
func (e NoMoreSplitsError) Error() string {
	return "No more splits"
}

// SplitSourceClosedError occurs when a SplitSource is used after Close
type SplitSourceClosedError struct{}

// Error returns a textual representation of this SplitSourceClosedError
func (e SplitSourceClosedError) Error() string {
	return "Split source is closed"
}

// Invalidf builds an InvalidArgumentError from a format string
func Invalidf(format string, args ...interface{}) error {
	return InvalidArgumentError{Reason: fmt.Sprintf(format, args...)}
}

// IllegalStatef builds an IllegalStateError from a format string
func IllegalStatef(format string, args ...interface{}) error {
	return IllegalStateError{Reason: fmt.Sprintf(format, args...)}
}
