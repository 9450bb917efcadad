package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the kind of failure a crawler operation can report
type ErrorType string

const (
	ErrorTypeAuthRequired      ErrorType = "auth_required"
	ErrorTypeBadCredentials    ErrorType = "bad_credentials"
	ErrorTypeTwoFactorRequired ErrorType = "two_factor_required"
	ErrorTypeInvalidArgument   ErrorType = "invalid_argument"
	ErrorTypeBadRequest        ErrorType = "bad_request"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeCancelled         ErrorType = "cancelled"
	ErrorTypeAbort             ErrorType = "abort"
)

// Error represents a classified crawler error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same type, so errors.Is(err, &Error{Type: T})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given type
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given type chaining cause
func Wrap(t ErrorType, cause error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: cause}
}

// WithCode creates an error of the given type carrying an HTTP status code
func WithCode(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Cancelled converts a context error into a cancelled error
func Cancelled(cause error) *Error {
	return &Error{Type: ErrorTypeCancelled, Message: "operation cancelled", Err: cause}
}

// TypeOf returns the type of the outermost *Error in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

// IsType reports whether any *Error in err's chain has type t
func IsType(err error, t ErrorType) bool {
	return errors.Is(err, &Error{Type: t})
}

// IsTaxonomy reports whether err belongs to the crawler's error taxonomy
func IsTaxonomy(err error) bool {
	_, ok := TypeOf(err)
	return ok
}

// IsCancellation reports whether err was caused by the caller cancelling
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || IsType(err, ErrorTypeCancelled)
}

// IsFatal reports whether err must stop a whole batch run: cancellation or an
// explicit abort.
func IsFatal(err error) bool {
	return IsCancellation(err) || IsType(err, ErrorTypeAbort)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// TypeForStatus maps a non-200 HTTP status to an error type
func TypeForStatus(statusCode int) ErrorType {
	switch statusCode {
	case 400:
		return ErrorTypeBadRequest
	case 403:
		return ErrorTypeForbidden
	case 404:
		return ErrorTypeNotFound
	case 429:
		return ErrorTypeRateLimit
	default:
		return ErrorTypeNetwork
	}
}
