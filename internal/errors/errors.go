// Package errors provides standardized domain errors with codes for the mover pipeline.
//
// Usage:
//
//	// In the mover - return typed errors
//	if destExists {
//	    return errors.DestinationConflict("destination already exists")
//	}
//
//	// In the controller - check with errors.Is
//	if errors.Is(err, errors.ErrDestinationConflict) {
//	    // permanent failure, no retry
//	}
//
//	// Or classify via the Code directly
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && domainErr.Code.Retryable() {
//	    // schedule another attempt
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeWatchRootUnavailable Code = "WATCH_ROOT_UNAVAILABLE"
	CodeTransientMove        Code = "TRANSIENT_MOVE"
	CodePermanentMove        Code = "PERMANENT_MOVE"
	CodeDestinationConflict  Code = "DESTINATION_CONFLICT"
	CodeVerification         Code = "VERIFICATION"
	CodeAborted              Code = "ABORTED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeUnavailable          Code = "UNAVAILABLE"
	CodeInternal             Code = "INTERNAL"
)

// Retryable reports whether another attempt at the same operation may
// succeed. Conflicts and permission problems never clear on their own;
// verification failures leave the source intact so a retry is safe.
func (c Code) Retryable() bool {
	switch c {
	case CodeTransientMove, CodeVerification:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Retryable reports whether this error's code is retryable.
func (e *Error) Retryable() bool {
	return e.Code.Retryable()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrWatchRootUnavailable = &Error{Code: CodeWatchRootUnavailable, Message: "watch root unavailable"}
	ErrTransientMove        = &Error{Code: CodeTransientMove, Message: "transient move failure"}
	ErrPermanentMove        = &Error{Code: CodePermanentMove, Message: "permanent move failure"}
	ErrDestinationConflict  = &Error{Code: CodeDestinationConflict, Message: "destination already exists"}
	ErrVerification         = &Error{Code: CodeVerification, Message: "copy verification failed"}
	ErrAborted              = &Error{Code: CodeAborted, Message: "aborted by shutdown"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists        = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrInvalidInput         = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrUnavailable          = &Error{Code: CodeUnavailable, Message: "unavailable"}
	ErrInternal             = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// WatchRootUnavailable creates a watch root unavailable error.
func WatchRootUnavailable(msg string) *Error {
	return &Error{Code: CodeWatchRootUnavailable, Message: msg}
}

// WatchRootUnavailablef creates a watch root unavailable error with formatted message.
func WatchRootUnavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeWatchRootUnavailable, Message: fmt.Sprintf(format, args...)}
}

// TransientMove creates a transient move error.
func TransientMove(msg string) *Error {
	return &Error{Code: CodeTransientMove, Message: msg}
}

// TransientMovef creates a transient move error with formatted message.
func TransientMovef(format string, args ...any) *Error {
	return &Error{Code: CodeTransientMove, Message: fmt.Sprintf(format, args...)}
}

// PermanentMove creates a permanent move error.
func PermanentMove(msg string) *Error {
	return &Error{Code: CodePermanentMove, Message: msg}
}

// PermanentMovef creates a permanent move error with formatted message.
func PermanentMovef(format string, args ...any) *Error {
	return &Error{Code: CodePermanentMove, Message: fmt.Sprintf(format, args...)}
}

// DestinationConflict creates a destination conflict error.
func DestinationConflict(msg string) *Error {
	return &Error{Code: CodeDestinationConflict, Message: msg}
}

// DestinationConflictf creates a destination conflict error with formatted message.
func DestinationConflictf(format string, args ...any) *Error {
	return &Error{Code: CodeDestinationConflict, Message: fmt.Sprintf(format, args...)}
}

// Verification creates a verification error.
func Verification(msg string) *Error {
	return &Error{Code: CodeVerification, Message: msg}
}

// Verificationf creates a verification error with formatted message.
func Verificationf(format string, args ...any) *Error {
	return &Error{Code: CodeVerification, Message: fmt.Sprintf(format, args...)}
}

// Aborted creates an aborted error.
func Aborted(msg string) *Error {
	return &Error{Code: CodeAborted, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// AlreadyExistsf creates an already exists error with formatted message.
func AlreadyExistsf(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

// InvalidInputf creates an invalid input error with formatted message.
func InvalidInputf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// InvalidInputWithDetails creates an invalid input error with details.
func InvalidInputWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg, Details: details}
}

// Unavailable creates an unavailable error.
func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

// Unavailablef creates an unavailable error with formatted message.
func Unavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
