package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// MaxImageBytes bounds the inline base64 payload (≈3 MiB decoded).
const MaxImageBytes = 4 << 20

type ProductService struct {
	products repository.ProductRepository
	types    repository.ProductTypeRepository
	logger   *slog.Logger
}

func NewProductService(products repository.ProductRepository, types repository.ProductTypeRepository, logger *slog.Logger) *ProductService {
	return &ProductService{products: products, types: types, logger: logger}
}

// ProductInput carries every writable product field. Create and Update use
// the same shape; Update replaces the metadata list wholesale.
type ProductInput struct {
	ProductTypeID int64
	Name          string
	Brand         string
	Price         decimal.Decimal
	Score         float64
	Image         string
	Metadata      []model.ProductMetadata
}

// Create stores a product owned by caller.
func (s *ProductService) Create(ctx context.Context, caller *model.User, in ProductInput) (*model.Product, error) {
	if caller == nil {
		return nil, apperror.Unauthorized()
	}
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	p := &model.Product{UserID: caller.ID}
	in.applyTo(p)

	if err := s.products.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create product",
			slog.String("name", p.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/product: creating: %w", err)
	}

	s.logger.Info("product created",
		slog.Int64("id", p.ID),
		slog.String("owner", p.UserID),
	)
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	return s.products.GetProduct(ctx, id)
}

// List returns one page of products, optionally restricted to one type.
func (s *ProductService) List(ctx context.Context, productTypeID int64, skip, limit int) ([]model.Product, error) {
	products, err := s.products.ListProducts(ctx, repository.ProductFilter{
		ListOptions:   page(skip, limit),
		ProductTypeID: productTypeID,
	})
	if err != nil {
		s.logger.Error("failed to list products", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/product: listing: %w", err)
	}
	return products, nil
}

// Update replaces the product's fields. Only the owner or an admin may.
func (s *ProductService) Update(ctx context.Context, caller *model.User, id int64, in ProductInput) (*model.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.AuthorizeMutate(p.UserID, caller); err != nil {
		return nil, err
	}
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	in.applyTo(p)
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update product",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/product: updating %d: %w", id, err)
	}

	s.logger.Info("product updated", slog.Int64("id", id), slog.String("by", caller.ID))
	return p, nil
}

// Delete removes the product and its metadata. A product still listed by any
// comparison is a conflict.
func (s *ProductService) Delete(ctx context.Context, caller *model.User, id int64) error {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.AuthorizeMutate(p.UserID, caller); err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", slog.Int64("id", id), slog.String("by", caller.ID))
	return nil
}

// check validates in and normalizes its strings in place.
func (s *ProductService) check(ctx context.Context, in *ProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Image = strings.TrimSpace(in.Image)

	if in.Name == "" {
		return apperror.ValidationFailed("name", "product name is required")
	}
	if len(in.Name) > MaxNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("product name must be %d characters or less", MaxNameLength))
	}
	if in.Price.IsNegative() {
		return apperror.ValidationFailed("price", "price cannot be negative")
	}
	if err := checkImage(in.Image); err != nil {
		return err
	}

	pt, err := s.types.GetProductType(ctx, in.ProductTypeID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("id_product_type",
				fmt.Sprintf("product type %d does not exist", in.ProductTypeID))
		}
		return fmt.Errorf("service/product: loading product type: %w", err)
	}

	for i, m := range in.Metadata {
		attr := strings.TrimSpace(m.Attribute)
		if attr == "" {
			return apperror.ValidationFailed("metadata", "metadata entry "+strconv.Itoa(i)+" has no attribute")
		}
		if !pt.Declares(attr) {
			return apperror.ValidationFailed("metadata",
				fmt.Sprintf("attribute %q is not declared by product type %q", attr, pt.Name))
		}
		in.Metadata[i].Attribute = attr
	}
	if in.Metadata == nil {
		in.Metadata = []model.ProductMetadata{}
	}
	return nil
}

func checkImage(image string) error {
	if image == "" {
		return nil
	}
	if len(image) > MaxImageBytes {
		return apperror.ValidationFailed("image",
			fmt.Sprintf("image must be %d bytes or less once encoded", MaxImageBytes))
	}
	if _, err := base64.StdEncoding.DecodeString(image); err != nil {
		return apperror.ValidationFailed("image", "image must be base64 encoded")
	}
	return nil
}

func (in ProductInput) applyTo(p *model.Product) {
	p.ProductTypeID = in.ProductTypeID
	p.Name = in.Name
	p.Brand = in.Brand
	p.Price = in.Price
	p.Score = in.Score
	p.Image = in.Image
	p.Metadata = in.Metadata
}
