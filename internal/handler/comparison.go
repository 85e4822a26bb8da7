package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/service"
)

// ComparisonHandler serves the comparison endpoints.
//
// POST /comparisons runs behind auth.OptionalAuth: no token means an
// anonymous, un-persisted comparison (200), a valid token means a stored one
// (201), and a bad token never reaches this handler (401).
type ComparisonHandler struct {
	svc    *service.ComparisonService
	logger *slog.Logger
}

func NewComparisonHandler(svc *service.ComparisonService, logger *slog.Logger) *ComparisonHandler {
	return &ComparisonHandler{svc: svc, logger: logger}
}

type createComparisonRequest struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=2000"`
	DateCreated   string  `json:"date_created" validate:"required,datetime=2006-01-02"`
	ProductTypeID int64   `json:"product_type_id" validate:"required,gt=0"`
	ProductIDs    []int64 `json:"product_ids" validate:"required,min=1,dive,gt=0"`
}

// ProductIDs distinguishes "absent" (nil, keep links) from "[]" (replace
// with nothing, rejected by the service).
type updateComparisonRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	DateCreated *string `json:"date_created" validate:"omitempty,datetime=2006-01-02"`
	ProductIDs  []int64 `json:"product_ids" validate:"omitempty,dive,gt=0"`
}

// HandleList returns hydrated comparisons, optionally for one user.
//
// HTTP: GET /comparisons?user_id=...&skip=0&limit=10
func (h *ComparisonHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paging(r)
	if err != nil {
		writeError(w, err)
		return
	}

	comparisons, err := h.svc.List(r.Context(), r.URL.Query().Get("user_id"), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparisons)
}

// HandleGet → GET /comparisons/{id}
func (h *ComparisonHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleCreate builds a comparison for whoever is calling.
//
// HTTP: POST /comparisons
// Auth: Optional
func (h *ComparisonHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createComparisonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid comparison", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	c, err := h.svc.Create(r.Context(), caller, service.CreateComparisonInput{
		Title:         req.Title,
		Description:   req.Description,
		DateCreated:   req.DateCreated,
		ProductTypeID: req.ProductTypeID,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if _, anonymous := caller.(model.Anonymous); anonymous {
		status = http.StatusOK
	}
	writeJSON(w, status, c)
}

// HandleUpdate → PUT /comparisons/{id} (owner or admin)
func (h *ComparisonHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateComparisonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid comparison update", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	c, err := h.svc.Update(r.Context(), caller, id, service.UpdateComparisonInput{
		Title:       req.Title,
		Description: req.Description,
		DateCreated: req.DateCreated,
		ProductIDs:  req.ProductIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a comparison and its links.
//
// HTTP: DELETE /comparisons/{id}
// 403 if the caller is neither owner nor admin, 404 if it doesn't exist.
func (h *ComparisonHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Comparison deleted"})
}
