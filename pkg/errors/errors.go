// Package errors provides the structured error taxonomy shared by the
// resolver, the HTTP API and the CLI.
//
// Every error the core surfaces to its callers carries a machine-readable
// [Code]. The code determines the HTTP status a route maps it to (see
// [HTTPStatus]) so the transport layers never inspect message text.
//
// # Codes
//
//   - PACKAGE_NOT_FOUND: the package or requested version is absent upstream (404)
//   - EXTERNAL_API_ERROR: an upstream returned an unexpected status (502)
//   - RESOLUTION_FAILED: resolution failed for a named reason (500)
//   - INVALID_PACKAGE / INVALID_INPUT: rejected before any upstream call (400)
//   - INTERNAL_ERROR: anything else (500, no detail leaked)
//
// # Usage
//
//	err := errors.PackageNotFound("left-pad", "9.9.9")
//	if errors.Is(err, errors.ErrCodePackageNotFound) {
//	    // 404
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"

	// Upstream errors
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeExternalAPI     Code = "EXTERNAL_API_ERROR"

	// Resolution and internal errors
	ErrCodeResolution Code = "RESOLUTION_FAILED"
	ErrCodeInternal   Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status code suggested for this error.
func (e *Error) Status() int {
	return e.Code.Status()
}

// Status returns the HTTP status code suggested for the code.
func (c Code) Status() int {
	switch c {
	case ErrCodePackageNotFound:
		return http.StatusNotFound
	case ErrCodeExternalAPI:
		return http.StatusBadGateway
	case ErrCodeInvalidInput, ErrCodeInvalidPackage:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// PackageNotFound reports that name@version does not exist upstream.
func PackageNotFound(name, version string) *Error {
	return New(ErrCodePackageNotFound, "Package not found: %s@%s", name, version)
}

// ExternalAPI reports that the named upstream answered with an unexpected
// HTTP status. The upstream status is kept in the message only; the error
// always maps to 502.
func ExternalAPI(api string, status int) *Error {
	return New(ErrCodeExternalAPI, "%s returned %d", api, status)
}

// Resolution reports a resolution failure with a named reason.
func Resolution(name, reason string) *Error {
	return New(ErrCodeResolution, "Failed to resolve %s: %s", name, reason)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps any error to a status code. Errors without a Code are
// internal.
func HTTPStatus(err error) int {
	if code := GetCode(err); code != "" {
		return code.Status()
	}
	return http.StatusInternalServerError
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
