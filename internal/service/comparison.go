package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// ComparisonService builds, reads and mutates comparisons.
//
// CREATE HAS TWO PATHS:
// The caller is a model.Caller, and Create switches on its concrete type:
//
//	model.Anonymous  → createAnonymous:  pure, touches no repository
//	model.Registered → createRegistered: pre-validates ids, then one transaction
//
// Keeping the branches as separate methods means the anonymous path can be
// read (and tested) as "no store access at all".
type ComparisonService struct {
	comparisons repository.ComparisonRepository
	products    repository.ProductRepository
	types       repository.ProductTypeRepository
	logger      *slog.Logger
}

func NewComparisonService(
	comparisons repository.ComparisonRepository,
	products repository.ProductRepository,
	types repository.ProductTypeRepository,
	logger *slog.Logger,
) *ComparisonService {
	return &ComparisonService{
		comparisons: comparisons,
		products:    products,
		types:       types,
		logger:      logger,
	}
}

type CreateComparisonInput struct {
	Title         string
	Description   string
	DateCreated   string
	ProductTypeID int64
	ProductIDs    []int64
}

// UpdateComparisonInput holds optional changes. A nil ProductIDs keeps the
// current links; a non-nil one replaces them.
type UpdateComparisonInput struct {
	Title       *string
	Description *string
	DateCreated *string
	ProductIDs  []int64
}

// Create builds a comparison for caller.
//
// Anonymous callers get an un-persisted view with id
// model.AnonymousComparisonID whose links carry only product ids. Registered
// callers get the stored, hydrated view.
func (s *ComparisonService) Create(ctx context.Context, caller model.Caller, in CreateComparisonInput) (*model.Comparison, error) {
	if err := checkComparisonInput(&in); err != nil {
		return nil, err
	}

	switch c := caller.(type) {
	case model.Anonymous:
		return s.createAnonymous(in), nil
	case model.Registered:
		return s.createRegistered(ctx, c.User, in)
	default:
		return nil, fmt.Errorf("service/comparison: unsupported caller %T", caller)
	}
}

func (s *ComparisonService) createAnonymous(in CreateComparisonInput) *model.Comparison {
	links := make([]model.ComparisonProduct, len(in.ProductIDs))
	for i, pid := range in.ProductIDs {
		links[i] = model.ComparisonProduct{ComparisonID: model.AnonymousComparisonID, ProductID: pid}
	}
	return &model.Comparison{
		ID:            model.AnonymousComparisonID,
		Title:         in.Title,
		Description:   in.Description,
		DateCreated:   in.DateCreated,
		ProductTypeID: in.ProductTypeID,
		Products:      links,
	}
}

func (s *ComparisonService) createRegistered(ctx context.Context, owner *model.User, in CreateComparisonInput) (*model.Comparison, error) {
	if owner == nil {
		return nil, apperror.Unauthorized()
	}
	if err := s.checkReferences(ctx, in.ProductTypeID, in.ProductIDs); err != nil {
		return nil, err
	}

	ownerID := owner.ID
	c := &model.Comparison{
		UserID:        &ownerID,
		Title:         in.Title,
		Description:   in.Description,
		DateCreated:   in.DateCreated,
		ProductTypeID: in.ProductTypeID,
	}
	if err := s.comparisons.CreateComparison(ctx, c, in.ProductIDs); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create comparison",
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/comparison: creating: %w", err)
	}

	s.logger.Info("comparison created",
		slog.Int64("id", c.ID),
		slog.String("owner", ownerID),
		slog.Int("products", len(c.Products)),
	)
	return c, nil
}

func (s *ComparisonService) Get(ctx context.Context, id int64) (*model.Comparison, error) {
	return s.comparisons.GetComparison(ctx, id)
}

// List returns one page of comparisons, optionally only those of userID.
func (s *ComparisonService) List(ctx context.Context, userID string, skip, limit int) ([]model.Comparison, error) {
	comparisons, err := s.comparisons.ListComparisons(ctx, repository.ComparisonFilter{
		ListOptions: page(skip, limit),
		UserID:      strings.TrimSpace(userID),
	})
	if err != nil {
		s.logger.Error("failed to list comparisons", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/comparison: listing: %w", err)
	}
	return comparisons, nil
}

// Update applies in to the comparison. Only the owner or an admin may.
func (s *ComparisonService) Update(ctx context.Context, caller *model.User, id int64, in UpdateComparisonInput) (*model.Comparison, error) {
	c, err := s.comparisons.GetComparison(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.AuthorizeMutate(c.OwnerID(), caller); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "comparison title is required")
		}
		c.Title = title
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.DateCreated != nil {
		if err := checkDate(*in.DateCreated); err != nil {
			return nil, err
		}
		c.DateCreated = *in.DateCreated
	}
	if in.ProductIDs != nil {
		if len(in.ProductIDs) == 0 {
			return nil, apperror.ValidationFailed("product_ids", "a comparison needs at least one product")
		}
		if err := s.checkProducts(ctx, in.ProductIDs); err != nil {
			return nil, err
		}
	}

	if err := s.comparisons.UpdateComparison(ctx, c, in.ProductIDs); err != nil {
		if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update comparison",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/comparison: updating %d: %w", id, err)
	}

	s.logger.Info("comparison updated", slog.Int64("id", id), slog.String("by", caller.ID))
	return c, nil
}

// Delete removes the comparison and its links.
//
// Order matters: existence first (404), then the guard (403), then the
// delete. A second Delete of the same id is a plain NotFound.
func (s *ComparisonService) Delete(ctx context.Context, caller *model.User, id int64) error {
	c, err := s.comparisons.GetComparison(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.AuthorizeMutate(c.OwnerID(), caller); err != nil {
		return err
	}
	if err := s.comparisons.DeleteComparison(ctx, id); err != nil {
		return err
	}
	s.logger.Info("comparison deleted", slog.Int64("id", id), slog.String("by", caller.ID))
	return nil
}

// checkReferences turns would-be foreign key failures into validation errors
// that name the missing id.
func (s *ComparisonService) checkReferences(ctx context.Context, productTypeID int64, productIDs []int64) error {
	if _, err := s.types.GetProductType(ctx, productTypeID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("product_type_id",
				fmt.Sprintf("product type %d does not exist", productTypeID))
		}
		return fmt.Errorf("service/comparison: loading product type: %w", err)
	}
	return s.checkProducts(ctx, productIDs)
}

func (s *ComparisonService) checkProducts(ctx context.Context, productIDs []int64) error {
	missing, err := s.products.MissingProducts(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("service/comparison: checking products: %w", err)
	}
	if len(missing) > 0 {
		return apperror.ValidationFailed("product_ids",
			fmt.Sprintf("product %d does not exist", missing[0]))
	}
	return nil
}

func checkComparisonInput(in *CreateComparisonInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return apperror.ValidationFailed("title", "comparison title is required")
	}
	if len(in.Title) > MaxNameLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("comparison title must be %d characters or less", MaxNameLength))
	}
	if err := checkDate(in.DateCreated); err != nil {
		return err
	}
	if in.ProductTypeID <= 0 {
		return apperror.ValidationFailed("product_type_id", "product_type_id must be positive")
	}
	if len(in.ProductIDs) == 0 {
		return apperror.ValidationFailed("product_ids", "a comparison needs at least one product")
	}
	for _, pid := range in.ProductIDs {
		if pid <= 0 {
			return apperror.ValidationFailed("product_ids", "product ids must be positive")
		}
	}
	return nil
}

func checkDate(date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperror.ValidationFailed("date_created", "date_created must be formatted YYYY-MM-DD")
	}
	return nil
}
