package model

import "time"

// AnonymousComparisonID is the id reported for comparisons built for callers
// without an account. Such comparisons are never stored.
const AnonymousComparisonID int64 = 0

// DateLayout is the accepted format of Comparison.DateCreated.
const DateLayout = "2006-01-02"

// Comparison is a user-curated set of products of one type, grouped for
// side-by-side evaluation.
//
// UserID is nil only for anonymous, un-persisted comparisons.
type Comparison struct {
	ID            int64               `json:"id"`
	UserID        *string             `json:"id_user"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	DateCreated   string              `json:"date_created"`
	ProductTypeID int64               `json:"product_type_id"`
	Products      []ComparisonProduct `json:"products"`
	CreatedAt     time.Time           `json:"-"`
	UpdatedAt     time.Time           `json:"-"`
}

// OwnerID returns the owning user's id, or "" for anonymous comparisons.
func (c *Comparison) OwnerID() string {
	if c.UserID == nil {
		return ""
	}
	return *c.UserID
}

// ProductIDs returns the linked product ids in link order.
func (c *Comparison) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Products))
	for _, p := range c.Products {
		ids = append(ids, p.ProductID)
	}
	return ids
}

// ComparisonProduct links one Comparison to one Product. The parent
// Comparison owns its links: they are created with it and deleted with it.
//
// Product is populated when the view is hydrated from the store; it stays nil
// for anonymous comparisons, which only carry the referenced id.
type ComparisonProduct struct {
	ID           int64    `json:"id"`
	ComparisonID int64    `json:"comparison_id"`
	ProductID    int64    `json:"product_id"`
	Product      *Product `json:"product,omitempty"`
}
