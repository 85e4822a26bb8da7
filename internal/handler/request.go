package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
)

// maxBodyBytes caps request bodies. Product images travel inline as base64,
// so this is generous.
const maxBodyBytes = 8 << 20

// REQUEST VALIDATION WITH validator/v10:
// Request structs carry `validate:"..."` tags next to their `json` tags:
//
//	Email string `json:"email" validate:"required,email"`
//
// decodeJSON decodes the body and runs the tags. The first failing field is
// reported as an apperror.ValidationFailed named by its JSON key, so the
// response says "email", not "Email".
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads r's body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		case errors.Is(err, model.ErrInvalidRole):
			return apperror.ValidationFailed("role", `role must be "user" or "admin"`)
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body",
				fmt.Sprintf("request body must be %d bytes or less", maxErr.Limit))
		default:
			return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
		}
	}

	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("body", err.Error())
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "datetime":
		return field + " must be formatted YYYY-MM-DD"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	}
	return fmt.Sprintf("%s failed the %q rule", field, fe.Tag())
}

// pathID parses the {id} URL parameter as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("%q is not a valid id", raw))
	}
	return id, nil
}

// queryInt reads an optional integer query parameter; missing means def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// paging reads the skip/limit pair shared by list endpoints. Range clamping
// is the service's job.
func paging(r *http.Request) (skip, limit int, err error) {
	if skip, err = queryInt(r, "skip", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}
