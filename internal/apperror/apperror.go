// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP layer knows which status code
// each one becomes. Callers test for a category with errors.Is against the
// sentinels and read the human-readable text from *AppError via errors.As.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// unauthorizedMessage is deliberately the same for every authentication
// failure so responses don't reveal which check rejected the caller.
const unauthorizedMessage = "valid authentication required"

type AppError struct {
	Err     error  // sentinel category
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller is authenticated but
// lacks permission. HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns the single, uniform authentication failure.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: unauthorizedMessage,
	}
}
