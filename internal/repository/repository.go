// Package repository declares the storage contracts the service layer
// depends on. internal/repository/sqlite provides the implementation; service
// tests provide in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/comparathor/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// CreateUser inserts u. An empty u.ID is filled with a generated id.
	// Duplicate email or id fails with apperror.ErrValidation.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	CountUsers(ctx context.Context) (int, error)
}

type ProductTypeRepository interface {
	CreateProductType(ctx context.Context, pt *model.ProductType) error
	GetProductType(ctx context.Context, id int64) (*model.ProductType, error)
	GetProductTypeByName(ctx context.Context, name string) (*model.ProductType, error)
	ListProductTypes(ctx context.Context) ([]model.ProductType, error)
	DeleteProductType(ctx context.Context, id int64) error
}

type ProductFilter struct {
	ListOptions
	ProductTypeID int64 // 0 = any type
}

type ProductRepository interface {
	// CreateProduct inserts the product and its metadata in one transaction.
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error)
	// MissingProducts returns the ids from ids that don't exist, in input order.
	MissingProducts(ctx context.Context, ids []int64) ([]int64, error)
	// UpdateProduct rewrites the product row and replaces its metadata atomically.
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type ComparisonFilter struct {
	ListOptions
	UserID string // "" = any owner
}

type ComparisonRepository interface {
	// CreateComparison inserts c and one link per productIDs entry, in order,
	// as a single transaction. On success c.ID and c.Products are set.
	CreateComparison(ctx context.Context, c *model.Comparison, productIDs []int64) error
	// GetComparison returns the comparison with every link hydrated.
	GetComparison(ctx context.Context, id int64) (*model.Comparison, error)
	ListComparisons(ctx context.Context, f ComparisonFilter) ([]model.Comparison, error)
	// UpdateComparison rewrites the comparison row; when productIDs is non-nil
	// the links are replaced in the same transaction.
	UpdateComparison(ctx context.Context, c *model.Comparison, productIDs []int64) error
	// DeleteComparison removes the comparison; its links go with it.
	DeleteComparison(ctx context.Context, id int64) error
}
