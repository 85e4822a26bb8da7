// Package handler contains the HTTP handlers of the API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path/query params, JSON body, caller)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules. They are the glue between HTTP and the
// services in internal/service.
package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so responses have one
// shape:
//
//	writeJSON(w, http.StatusOK, data)
//	writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
//
//	{"error": "not_found", "message": "comparison not found with id 42"}
//
// The frontend always knows what fields to expect, whether it's a 400, 401,
// 403, 404, 409 or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/comparathor/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending input field, for validation errors
}

// DetailResponse confirms an operation that returns no resource.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status go out on the first Write, so set them first:
//  1. w.Header().Set(...)     ← set headers
//  2. w.WriteHeader(status)   ← send status + headers
//  3. json.Encode(data)       ← send body
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400 validation_error
//	apperror.ErrUnauthorized → 401 unauthorized (+ WWW-Authenticate)
//	apperror.ErrForbidden    → 403 forbidden
//	apperror.ErrNotFound     → 404 not_found
//	apperror.ErrConflict     → 409 conflict
//	anything else            → 500 internal_error, generic message
//
// errors.As walks the wrap chain, so a service returning
// fmt.Errorf("...: %w", apperror.NotFound(...)) still maps to 404.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
			w.Header().Set("WWW-Authenticate", `Bearer realm="comparathor"`)
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return
		}
	}

	// Unknown error: NEVER expose internal details (SQL, file paths) to the client.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
