// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sapcc/go-bits/errext"
)

// ErrorCode is the closed set of error codes that can appear in type Error.
type ErrorCode string

// Possible values for ErrorCode.
const (
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrForbidden    ErrorCode = "FORBIDDEN"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrConflict     ErrorCode = "CONFLICT"
	ErrStorage      ErrorCode = "STORAGE_ERROR"
)

// With is a convenience function for constructing type Error.
func (c ErrorCode) With(msg string, args ...any) *Error {
	var err error
	if msg != "" {
		if len(args) > 0 {
			err = fmt.Errorf(msg, args...)
		} else {
			err = errors.New(msg)
		}
	}
	return &Error{Code: c, Inner: err}
}

// Wrap constructs an Error with the given inner error.
func (c ErrorCode) Wrap(err error) *Error {
	return &Error{Code: c, Inner: err}
}

var errorMessages = map[ErrorCode]string{
	ErrValidation:   "invalid request",
	ErrNotFound:     "not found",
	ErrForbidden:    "forbidden",
	ErrUnauthorized: "authentication failed",
	ErrConflict:     "conflict",
	ErrStorage:      "storage error",
}

var errorStatusCodes = map[ErrorCode]int{
	ErrValidation:   http.StatusUnprocessableEntity,
	ErrNotFound:     http.StatusNotFound,
	ErrForbidden:    http.StatusForbidden,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrConflict:     http.StatusConflict,
	ErrStorage:      http.StatusInternalServerError,
}

// Error is the error type returned by all operations of this service.
type Error struct {
	Code  ErrorCode
	Inner error //optional
}

// Error implements the builtin/error interface.
func (e *Error) Error() string {
	text := errorMessages[e.Code]
	if e.Inner != nil {
		text += ": " + e.Inner.Error()
	}
	return text
}

// Unwrap implements the interface implied by package errors.
func (e *Error) Unwrap() error {
	return e.Inner
}

// StatusCode returns the HTTP status code corresponding to this error.
func (e *Error) StatusCode() int {
	return errorStatusCodes[e.Code]
}

// WriteAsTextTo reports this error in a plain text format.
func (e *Error) WriteAsTextTo(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(e.StatusCode())
	w.Write([]byte(e.Error() + "\n")) //nolint:errcheck
}

// AsError converts any error into an *Error. Errors outside of the taxonomy
// are reported as storage errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if rerr, ok := errext.As[*Error](err); ok {
		return rerr
	}
	return ErrStorage.Wrap(err)
}

// IsCode returns whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	rerr, ok := errext.As[*Error](err)
	return ok && rerr.Code == code
}

// VariableMismatchError describes the symmetric difference between the
// variables declared by a template and the variables bound by a request.
type VariableMismatchError struct {
	TemplateName string
	Missing      []string
	Extra        []string
}

// Error implements the builtin/error interface.
func (e VariableMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	return fmt.Sprintf("variables do not match template %q: %s", e.TemplateName, strings.Join(parts, "; "))
}
