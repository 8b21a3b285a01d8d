// Package apperrors defines the error taxonomy mapped to HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeApp          = "APP_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError is an error that carries its HTTP status and a stable code.
type AppError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// New returns a generic 400 error.
func New(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeApp, Message: message}
}

// Wrap returns a 400 error that keeps err as its cause.
func Wrap(err error, message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeApp, Message: message, Err: err}
}

func NotFound(resource string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

// Unavailable reports a missing or failing upstream provider.
func Unavailable(message string, err error) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: message, Err: err}
}

// Validation returns a 422 error with per-field messages.
func Validation(fields map[string][]string) *AppError {
	return &AppError{Status: http.StatusUnprocessableEntity, Code: CodeValidation, Message: "invalid data", Fields: fields}
}

// Field is a shortcut for a validation error on a single field.
func Field(name, message string) *AppError {
	return Validation(map[string][]string{name: {message}})
}

// As extracts an *AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 AppError.
func IsNotFound(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Status == http.StatusNotFound
}
