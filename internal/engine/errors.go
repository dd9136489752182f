package engine

import (
	"errors"
	"fmt"
)

// RaisedError is a program-level error propagated out of a throws-qualified
// function. It reaches the resumed caller exactly as a synchronous
// propagation would: suspension introduces no new runtime error kind.
type RaisedError struct {
	Code string
	Func string // signature of the raising function
}

// Error implements the error interface.
func (e *RaisedError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("raised %q in %s", e.Code, e.Func)
	}
	return fmt.Sprintf("raised %q", e.Code)
}

// RunErrorCode categorizes engine-level run failures.
type RunErrorCode string

const (
	// ErrCodeCancelled: a resumption unit of the run was explicitly
	// cancelled before executing.
	ErrCodeCancelled RunErrorCode = "CANCELLED"

	// ErrCodeQuotaExceeded: the run exceeded its step quota.
	ErrCodeQuotaExceeded RunErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeNoEntry: the requested entry function does not exist or is
	// overloaded.
	ErrCodeNoEntry RunErrorCode = "NO_ENTRY"

	// ErrCodeBadArgument: entry arguments did not match the entry
	// signature.
	ErrCodeBadArgument RunErrorCode = "BAD_ARGUMENT"

	// ErrCodeInternal: an evaluation invariant was violated. Indicates a
	// lowering bug, not a program error.
	ErrCodeInternal RunErrorCode = "INTERNAL"
)

// RunError is an engine-level failure of a run, distinct from a
// program-raised error.
type RunError struct {
	Code    RunErrorCode
	Message string
	Run     string
	Func    string
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Run != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.Run)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCancelled reports whether err is a cancellation error, unwrapping as
// needed.
func IsCancelled(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == ErrCodeCancelled
}

// IsQuotaExceeded reports whether err is a quota error.
func IsQuotaExceeded(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded
}

// NewQuotaError creates a RunError for a run exceeding its step quota.
func NewQuotaError(run string, steps, limit int) *RunError {
	return &RunError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("run exceeded max steps (%d >= %d)", steps, limit),
		Run:     run,
	}
}
