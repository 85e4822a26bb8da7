package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType groups products that share a set of comparable attributes.
//
// MetadataSchema is free-form: keys are attribute names, values describe the
// expected shape (e.g. {"ram": "GB", "cpu": "model name"}). An empty schema
// accepts any attribute.
type ProductType struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	MetadataSchema map[string]any `json:"metadata_schema"`
}

// Declares reports whether attribute is allowed by the type's schema.
func (pt *ProductType) Declares(attribute string) bool {
	if len(pt.MetadataSchema) == 0 {
		return true
	}
	_, ok := pt.MetadataSchema[attribute]
	return ok
}

// ProductMetadata is one attribute/value/score triple describing a facet of
// a Product. Order is significant and preserved by the store.
type ProductMetadata struct {
	Attribute string  `json:"attribute"`
	Value     string  `json:"value"`
	Score     float64 `json:"score"`
}

// Product is a comparable item owned by a user.
//
// Price uses decimal.Decimal so money never goes through float rounding; it
// serializes as a JSON string ("19.99"). Image holds a base64 payload inline.
type Product struct {
	ID            int64             `json:"id"`
	UserID        string            `json:"id_user"`
	ProductTypeID int64             `json:"id_product_type"`
	Name          string            `json:"name"`
	Brand         string            `json:"brand"`
	Price         decimal.Decimal   `json:"price"`
	Score         float64           `json:"score"`
	Image         string            `json:"image"`
	Metadata      []ProductMetadata `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
