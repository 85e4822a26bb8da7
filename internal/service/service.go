// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values and return domain errors from
// internal/apperror. They never see an *http.Request and never choose a
// status code; the handler layer translates.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, NOT *sqlite.DB. Tests pass the
// in-memory fakes from fakes_test.go; server.go passes the real database.
package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/sakif/comparathor/internal/repository"
)

// Pagination limits shared by every list operation.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// validate checks single values (emails) with the same rules the handlers
// apply to request bodies. *validator.Validate is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// page clamps skip/limit to a sane range so callers can't ask for a million rows.
func page(skip, limit int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if skip < 0 {
		skip = 0
	}
	return repository.ListOptions{Limit: limit, Offset: skip}
}
