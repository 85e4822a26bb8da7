package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

var _ repository.ProductRepository = (*DB)(nil)

const productColumns = `id, user_id, product_type_id, name, brand, price, score, image, created_at, updated_at`

// CreateProduct inserts the product row and its metadata rows in one
// transaction. A zero p.ID is assigned by SQLite.
func (db *DB) CreateProduct(ctx context.Context, p *model.Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO products (`+productColumns+`)
			 VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.ProductTypeID, p.Name, p.Brand, p.Price, p.Score, p.Image,
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if p.ID, err = result.LastInsertId(); err != nil {
			return err
		}
		return insertMetadata(ctx, tx, p.ID, p.Metadata)
	})
	if err != nil {
		return translateProductWriteErr("creating product", err)
	}
	return nil
}

func (db *DB) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return getProduct(ctx, db.conn, id)
}

// ListProducts returns one page of products, each with its metadata.
func (db *DB) ListProducts(ctx context.Context, f repository.ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if f.ProductTypeID > 0 {
		query += ` WHERE product_type_id = ?`
		args = append(args, f.ProductTypeID)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing products: %w", err)
	}

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating products: %w", err)
	}
	// Close before the metadata query: an in-memory pool has one connection.
	rows.Close()

	if err := attachMetadata(ctx, db.conn, products); err != nil {
		return nil, err
	}
	return products, nil
}

// MissingProducts reports which of ids have no products row.
func (db *DB) MissingProducts(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[int64]bool, len(ids))
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM products WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking product ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning product id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating product ids: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
			found[id] = true // report each missing id once
		}
	}
	return missing, nil
}

// UpdateProduct rewrites the product row and replaces its metadata. The owner
// (user_id) is never changed here.
func (db *DB) UpdateProduct(ctx context.Context, p *model.Product) error {
	p.UpdatedAt = time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET product_type_id = ?, name = ?, brand = ?, price = ?, score = ?, image = ?, updated_at = ?
			 WHERE id = ?`,
			p.ProductTypeID, p.Name, p.Brand, p.Price, p.Score, p.Image, p.UpdatedAt, p.ID,
		)
		if err != nil {
			return err
		}
		if err := checkAffected(result, apperror.NotFound("product", strconv.FormatInt(p.ID, 10))); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_metadata WHERE product_id = ?`, p.ID); err != nil {
			return err
		}
		return insertMetadata(ctx, tx, p.ID, p.Metadata)
	})
	if err != nil {
		return translateProductWriteErr(fmt.Sprintf("updating product %d", p.ID), err)
	}
	return nil
}

// DeleteProduct removes the product and, by ON DELETE CASCADE, its metadata.
// Comparison links have no cascade: a product that any comparison still
// lists fails the foreign key check and is reported as a conflict, so no
// comparison is ever left without products.
func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	idStr := strconv.FormatInt(id, 10)

	result, err := db.conn.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Conflict("product", idStr)
		}
		return fmt.Errorf("sqlite: deleting product %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("product", idStr))
}

func getProduct(ctx context.Context, q querier, id int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("product", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting product %d: %w", id, err)
	}

	products := []model.Product{*p}
	if err := attachMetadata(ctx, q, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(
		&p.ID, &p.UserID, &p.ProductTypeID, &p.Name, &p.Brand, &p.Price, &p.Score, &p.Image,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Metadata = []model.ProductMetadata{}
	return &p, nil
}

func insertMetadata(ctx context.Context, tx *sql.Tx, productID int64, metadata []model.ProductMetadata) error {
	for i, m := range metadata {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO product_metadata (product_id, position, attribute, value, score)
			 VALUES (?, ?, ?, ?, ?)`,
			productID, i, m.Attribute, m.Value, m.Score,
		); err != nil {
			return err
		}
	}
	return nil
}

// attachMetadata loads metadata for all products with one query and fills
// each product's Metadata in position order.
func attachMetadata(ctx context.Context, q querier, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	index := make(map[int64]int, len(products))
	ids := make([]int64, 0, len(products))
	for i, p := range products {
		index[p.ID] = i
		ids = append(ids, p.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT product_id, attribute, value, score FROM product_metadata
		 WHERE product_id IN (`+placeholders(len(ids))+`)
		 ORDER BY product_id, position`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading product metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			m         model.ProductMetadata
		)
		if err := rows.Scan(&productID, &m.Attribute, &m.Value, &m.Score); err != nil {
			return fmt.Errorf("sqlite: scanning product metadata: %w", err)
		}
		i := index[productID]
		products[i].Metadata = append(products[i].Metadata, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating product metadata: %w", err)
	}
	return nil
}

func translateProductWriteErr(op string, err error) error {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return err
	case isForeignKeyViolation(err):
		return apperror.ValidationFailed("id_product_type", "product references an unknown user or product type")
	case isUniqueViolation(err):
		return apperror.ValidationFailed("id", "product id already exists")
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
