// Package domainerrors defines the code-based error type shared by services
// and handlers. Storage layers return sentinels; services translate them into
// coded errors here, and the HTTP layer maps codes to statuses. Every code is
// recoverable: a failed operation reports its code and leaves state untouched.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for callers and for the HTTP mapping.
type Code string

const (
	// CodeInvalidProduct means the product identifier is outside the range
	// of registered products.
	CodeInvalidProduct Code = "invalid_product"
	// CodeUnauthorized means the caller is not the product's current owner.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvalidOwner means the transfer target is not a well-formed
	// identity.
	CodeInvalidOwner Code = "invalid_owner"

	CodeBadRequest      Code = "bad_request"
	CodeUnauthenticated Code = "unauthenticated"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeTimeout         Code = "timeout"
	CodeInternal        Code = "internal_error"
	// CodeInvariantViolation flags stored state that contradicts a registry
	// invariant. It should never surface in normal operation.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error carries a code, a caller-facing message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.cause
			continue
		}
		return false
	}
	return false
}

// Is is a readable alias for HasCode at call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost domain code, defaulting to CodeInternal for
// errors that never got translated.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
