package loop

import (
	"errors"
	"fmt"
)

// Error represents a lifecycle or configuration failure of a loop.
//
// Errors produced by Update are never represented here: a failing Update is a
// defect and panics. Error covers:
//   - Configuration: contradictory or missing builder input
//   - Connection limit: a second Connect on one loop instance
//   - Unrecoverable source: an event source reported a failure
//   - Terminated: Dispatch on a disposed or failed loop
//   - Contract violation: misuse of a Connection (raised as a panic value)
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// LoopID identifies the affected loop, if one was running.
	LoopID string

	// Err is the underlying cause (the source error for UNRECOVERABLE_SOURCE).
	Err error
}

// ErrorCode categorizes loop errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates invalid builder input, detected before start.
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeConnectionLimit indicates a second connection attempt.
	ErrCodeConnectionLimit ErrorCode = "CONNECTION_LIMIT"

	// ErrCodeUnrecoverableSource indicates an event source failed.
	ErrCodeUnrecoverableSource ErrorCode = "UNRECOVERABLE_SOURCE"

	// ErrCodeDisposed indicates the loop was disposed.
	ErrCodeDisposed ErrorCode = "LOOP_DISPOSED"

	// ErrCodeFailed indicates the loop is in the Failed state.
	ErrCodeFailed ErrorCode = "LOOP_FAILED"

	// ErrCodeContractViolation indicates a programmer error.
	ErrCodeContractViolation ErrorCode = "CONTRACT_VIOLATION"
)

var (
	// ErrConnectionLimitExceeded is returned by a ConnectOnce connectable on
	// every Connect after the first.
	ErrConnectionLimitExceeded = &Error{Code: ErrCodeConnectionLimit, Message: "connection limit exceeded"}

	// ErrLoopDisposed is returned by Dispatch after Dispose.
	ErrLoopDisposed = &Error{Code: ErrCodeDisposed, Message: "loop has been disposed"}

	// ErrLoopFailed is returned by Dispatch after an event source failure.
	ErrLoopFailed = &Error{Code: ErrCodeFailed, Message: "loop has failed"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.LoopID != "" {
		msg = fmt.Sprintf("%s (loop=%s)", msg, e.LoopID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err,
// ErrLoopDisposed) holds for errors annotated with a loop ID.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewConfigError creates a configuration error.
func NewConfigError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfig, Message: fmt.Sprintf(format, args...)}
}

// NewUnrecoverableError wraps a source failure. errors.Is(result, cause)
// still matches the original error.
func NewUnrecoverableError(loopID string, cause error) *Error {
	return &Error{
		Code:    ErrCodeUnrecoverableSource,
		Message: "event source failed",
		LoopID:  loopID,
		Err:     cause,
	}
}

func newContractViolation(format string, args ...any) *Error {
	return &Error{Code: ErrCodeContractViolation, Message: fmt.Sprintf(format, args...)}
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsConfigError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeConfig)
}

// IsConnectionLimitError returns true if the error is a connection limit error.
func IsConnectionLimitError(err error) bool {
	return hasCode(err, ErrCodeConnectionLimit)
}

// IsUnrecoverableError returns true if the error reports a broken event source.
func IsUnrecoverableError(err error) bool {
	return hasCode(err, ErrCodeUnrecoverableSource)
}

// IsTerminatedError returns true if the loop rejected input because it was
// disposed or failed.
func IsTerminatedError(err error) bool {
	return hasCode(err, ErrCodeDisposed) || hasCode(err, ErrCodeFailed)
}

// IsContractViolation returns true for programmer errors. Such errors are
// raised as panic values; use this on a recovered value converted to error.
func IsContractViolation(err error) bool {
	return hasCode(err, ErrCodeContractViolation)
}
