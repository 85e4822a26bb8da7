package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/service"
)

type ProductHandler struct {
	svc    *service.ProductService
	logger *slog.Logger
}

func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, logger: logger}
}

// productRequest is the body of both POST and PUT. decimal.Decimal accepts
// the price as a JSON string ("19.99") or number (19.99).
type productRequest struct {
	ProductTypeID int64                   `json:"id_product_type" validate:"required,gt=0"`
	Name          string                  `json:"name" validate:"required,max=200"`
	Brand         string                  `json:"brand" validate:"max=200"`
	Price         decimal.Decimal         `json:"price"`
	Score         float64                 `json:"score"`
	Image         string                  `json:"image"`
	Metadata      []model.ProductMetadata `json:"metadata"`
}

func (req productRequest) input() service.ProductInput {
	return service.ProductInput{
		ProductTypeID: req.ProductTypeID,
		Name:          req.Name,
		Brand:         req.Brand,
		Price:         req.Price,
		Score:         req.Score,
		Image:         req.Image,
		Metadata:      req.Metadata,
	}
}

// HandleList returns one page of products.
//
// HTTP: GET /products?skip=0&limit=10&product_type_id=3
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paging(r)
	if err != nil {
		writeError(w, err)
		return
	}
	typeID, err := queryInt(r, "product_type_id", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	products, err := h.svc.List(r.Context(), int64(typeID), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// HandleGet → GET /products/{id}
func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCreate → POST /products. The caller becomes the owner.
func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid product", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), caller, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate → PUT /products/{id} (owner or admin)
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid product update", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), caller, id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete → DELETE /products/{id} (owner or admin)
func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Product deleted"})
}
