// Package errors provides coded domain errors shared across services.
//
// Services wrap infrastructure failures and guard violations into coded
// errors; the transport layer translates codes into HTTP statuses. The code
// is part of the contract with callers: it tells them whether to fix their
// input, retry later, or stop.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed input (bad ID number format, missing
	// required field). Surfaced before any state mutation, never retried.
	CodeValidation Code = "validation_error"

	// CodeGuardViolation marks a state-machine transition attempted from an
	// illegal state. No mutation occurs.
	CodeGuardViolation Code = "guard_violation"

	// CodeUpstreamUnavailable marks a collaborator timeout or outage. The
	// operation is retryable and the aggregate keeps its current state.
	CodeUpstreamUnavailable Code = "upstream_unavailable"

	// CodeIntegrityFailure marks a payment signature mismatch. Security
	// relevant; never silently retried with the same signature.
	CodeIntegrityFailure Code = "integrity_failure"

	// CodeLookupIncomplete marks match scoring attempted without eKYC data.
	// Distinct from a genuine mismatch so logs can tell the two apart.
	CodeLookupIncomplete Code = "identity_lookup_incomplete"

	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
)

// Error is a coded domain error. Message is safe to log; it never carries
// raw upstream error text destined for end users.
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

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsCoded reports whether err (or anything it wraps) already carries a
// domain code, as opposed to a raw infrastructure error.
func IsCoded(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return HasCode(err, CodeUpstreamUnavailable)
}

// ToHTTPStatus maps a code to the HTTP status the transport layer returns.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeGuardViolation, CodeConflict:
		return http.StatusConflict
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeIntegrityFailure:
		return http.StatusBadRequest
	case CodeLookupIncomplete:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
