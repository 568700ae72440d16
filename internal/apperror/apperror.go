// Package apperror carries user-facing failures across layers. The JSON API
// maps the kinds below to HTTP status codes; the views show Message in a snackbar.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrQuota        = errors.New("quota exceeded")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
)

// AppError pairs a sentinel kind with a message that is safe to show users.
type AppError struct {
	Err     error  // kind, one of the sentinels above
	Message string // human-readable message
	Field   string // optional form field the message refers to
	Cause   error  // underlying failure, never shown to users
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func Validation(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

func NotFound(resource, id string) *AppError {
	return &AppError{Err: ErrNotFound, Message: fmt.Sprintf("%s not found with id %s", resource, id)}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

func Quota(message string) *AppError {
	return &AppError{Err: ErrQuota, Message: message}
}

// Unavailable reports a backend that could not be reached.
func Unavailable(message string, cause error) *AppError {
	return &AppError{Err: ErrUnavailable, Message: message, Cause: cause}
}

// Internal hides cause behind a generic message.
func Internal(message string, cause error) *AppError {
	return &AppError{Err: ErrInternal, Message: message, Cause: cause}
}

// MessageOf returns the user-facing message carried by err, or fallback when
// err is not an AppError.
func MessageOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
