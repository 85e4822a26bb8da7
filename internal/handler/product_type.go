package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/service"
)

type ProductTypeHandler struct {
	svc    *service.ProductTypeService
	logger *slog.Logger
}

func NewProductTypeHandler(svc *service.ProductTypeService, logger *slog.Logger) *ProductTypeHandler {
	return &ProductTypeHandler{svc: svc, logger: logger}
}

type productTypeRequest struct {
	Name           string         `json:"name" validate:"required,max=200"`
	Description    string         `json:"description" validate:"max=2000"`
	MetadataSchema map[string]any `json:"metadata_schema"`
}

// HandleList → GET /product-types
func (h *ProductTypeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// HandleGet → GET /product-types/{id}
func (h *ProductTypeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

// HandleCreate → POST /product-types (admin)
func (h *ProductTypeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req productTypeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid product type", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	pt, err := h.svc.Create(r.Context(), caller, req.Name, req.Description, req.MetadataSchema)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pt)
}

// HandleDelete → DELETE /product-types/{id} (admin). 409 while referenced.
func (h *ProductTypeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Product type deleted"})
}
