package core

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures crossing the remote API boundary and the
// structural errors raised by the framework itself. The classification drives
// retry decisions in the client and status mapping in the engine.
type ErrorType int8

const (
	// ErrorTypeUnknown is the zero value, the default for unclassified errors.
	ErrorTypeUnknown ErrorType = iota

	// Retryable error types.

	// ErrorTypeRateLimit represents remote rate limiting (429, quota exceeded).
	ErrorTypeRateLimit
	// ErrorTypeTransient represents transient failures (5xx, connection reset,
	// timeout, EOF).
	ErrorTypeTransient

	// Non-retryable error types.

	// ErrorTypeNonRetryable represents malformed requests and auth failures
	// (4xx other than rate limit).
	ErrorTypeNonRetryable
	// ErrorTypeConfigInvalid represents a bad AgentConfig rejected at
	// registration time.
	ErrorTypeConfigInvalid
	// ErrorTypeAgentNotFound represents a dispatch-time lookup miss.
	ErrorTypeAgentNotFound
	// ErrorTypeExhausted represents a transient failure that survived the
	// full retry budget.
	ErrorTypeExhausted
	// ErrorTypeCancelled represents caller-initiated cancellation.
	ErrorTypeCancelled
	// ErrorTypeClientClosed represents an invocation attempted after Close.
	ErrorTypeClientClosed
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeNonRetryable:
		return "non_retryable"
	case ErrorTypeConfigInvalid:
		return "config_invalid"
	case ErrorTypeAgentNotFound:
		return "agent_not_found"
	case ErrorTypeExhausted:
		return "exhausted"
	case ErrorTypeCancelled:
		return "cancelled"
	case ErrorTypeClientClosed:
		return "client_closed"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified framework error. It wraps an optional cause so that
// errors.Is / errors.As keep working across the retry and dispatch layers.
type Error struct {
	Type    ErrorType // Classified error type
	Message string    // Human-readable message
	Err     error     // Wrapped underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	default:
		return e.Type.String()
	}
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the client should retry after this error.
// Unknown errors count as retryable.
func (e *Error) Retryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}

// NewError creates a classified error without a cause.
func NewError(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// NewErrorf creates a classified error with a formatted message.
func NewErrorf(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewErrorWithCause creates a classified error wrapping another error.
func NewErrorWithCause(t ErrorType, cause error, message string) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// IsErrorType checks whether err (or anything it wraps) carries the given type.
func IsErrorType(err error, t ErrorType) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Type == t
	}
	return false
}

// TypeOf returns the classification of err, or ErrorTypeUnknown if it is not
// a framework error.
func TypeOf(err error) ErrorType {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}
