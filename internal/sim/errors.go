// Package sim implements the discrete-tick service-network simulation
// kernel: resource pools, service and job state machines, pluggable
// prioritisation policies, admission control, and the engine that
// drives them tick by tick.
package sim

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one of the kernel's tagged error kinds.
type ErrorCode string

const (
	// ErrResourceCapacityExceeded is raised by ResourcePool.Allocate when
	// granting the request would push a resource's level above capacity.
	ErrResourceCapacityExceeded ErrorCode = "RESOURCE_CAPACITY_EXCEEDED"
	// ErrResourceCapacityUnderrun is raised by ResourcePool.Deallocate
	// when releasing the request would push a resource's level below zero.
	ErrResourceCapacityUnderrun ErrorCode = "RESOURCE_CAPACITY_UNDERRUN"
	// ErrMaxAttemptsReached is raised by ServiceInstance.Start when the
	// service has already exhausted its template's MaxAttempts.
	ErrMaxAttemptsReached ErrorCode = "MAX_ATTEMPTS_REACHED"
	// ErrServiceNotPending is raised by JobInstance.StartService when the
	// given service is not a member of the job's pending set.
	ErrServiceNotPending ErrorCode = "SERVICE_NOT_PENDING"
	// ErrInvalidSignatureFormat is raised by the scenario loader when a
	// job template's signature string cannot be parsed.
	ErrInvalidSignatureFormat ErrorCode = "INVALID_SIGNATURE_FORMAT"
	// ErrTooManyNestedScopes is raised when a signature nests tuples
	// deeper than stage-of-services.
	ErrTooManyNestedScopes ErrorCode = "TOO_MANY_NESTED_SCOPES"
	// ErrInvalidServiceReference is raised when a signature references a
	// service template identifier unknown to the scenario.
	ErrInvalidServiceReference ErrorCode = "INVALID_SERVICE_REFERENCE"
)

// Error is a tagged-variant kernel error: a stable code, a human-readable
// message, and an optional wrapped cause for errors.Is/As chains.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewError constructs a tagged kernel error. Exported for collaborators
// outside this package (e.g. the scenario loader) that raise the
// loader-only error kinds (InvalidSignatureFormat, TooManyNestedScopes,
// InvalidServiceReference).
func NewError(code ErrorCode, message string) *Error {
	return newErr(code, message)
}

func wrapErr(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err, if err (or something it wraps)
// is a *Error.
func CodeOf(err error) (ErrorCode, bool) {
	var kernel *Error
	if errors.As(err, &kernel) {
		return kernel.Code, true
	}
	return "", false
}

// Is reports whether err is a kernel error with the given code.
func Is(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
