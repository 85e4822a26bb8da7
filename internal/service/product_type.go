package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

const MaxNameLength = 200

type ProductTypeService struct {
	types  repository.ProductTypeRepository
	logger *slog.Logger
}

func NewProductTypeService(types repository.ProductTypeRepository, logger *slog.Logger) *ProductTypeService {
	return &ProductTypeService{types: types, logger: logger}
}

// Create stores a new product type. Only admins may define types.
func (s *ProductTypeService) Create(ctx context.Context, caller *model.User, name, description string, schema map[string]any) (*model.ProductType, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only administrators can create product types")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "product type name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("product type name must be %d characters or less", MaxNameLength))
	}
	if schema == nil {
		schema = map[string]any{}
	}

	pt := &model.ProductType{Name: name, Description: strings.TrimSpace(description), MetadataSchema: schema}
	if err := s.types.CreateProductType(ctx, pt); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create product type",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/product_type: creating: %w", err)
	}

	s.logger.Info("product type created", slog.Int64("id", pt.ID), slog.String("name", pt.Name))
	return pt, nil
}

func (s *ProductTypeService) Get(ctx context.Context, id int64) (*model.ProductType, error) {
	return s.types.GetProductType(ctx, id)
}

func (s *ProductTypeService) List(ctx context.Context) ([]model.ProductType, error) {
	types, err := s.types.ListProductTypes(ctx)
	if err != nil {
		s.logger.Error("failed to list product types", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/product_type: listing: %w", err)
	}
	return types, nil
}

// Delete removes an unreferenced type. A type still used by products or
// comparisons fails with apperror.ErrConflict.
func (s *ProductTypeService) Delete(ctx context.Context, caller *model.User, id int64) error {
	if !caller.IsAdmin() {
		return apperror.Forbidden("only administrators can delete product types")
	}
	if err := s.types.DeleteProductType(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product type deleted", slog.Int64("id", id), slog.String("by", caller.ID))
	return nil
}
