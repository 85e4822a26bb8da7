package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

var _ repository.ComparisonRepository = (*DB)(nil)

const comparisonColumns = `id, user_id, title, description, date_created, product_type_id, created_at, updated_at`

// CreateComparison stores c and its product links as one unit of work.
//
// TRANSACTION SHAPE:
//
//	BEGIN
//	  INSERT comparisons            → c.ID
//	  INSERT comparison_products ×N (in productIDs order)
//	COMMIT
//
// Any failing statement (an unknown product id trips the foreign key) rolls
// the whole thing back, so a comparison row never exists without its links.
// After commit the comparison is re-read so c.Products carries hydrated
// products exactly as GetComparison would return them.
func (db *DB) CreateComparison(ctx context.Context, c *model.Comparison, productIDs []int64) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO comparisons (`+comparisonColumns+`)
			 VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.OwnerID(), c.Title, c.Description, c.DateCreated, c.ProductTypeID,
			c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if c.ID, err = result.LastInsertId(); err != nil {
			return err
		}
		return insertLinks(ctx, tx, c.ID, productIDs)
	})
	if err != nil {
		return translateComparisonWriteErr("creating comparison", err)
	}

	stored, err := db.GetComparison(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// GetComparison returns the comparison with its links in insertion order,
// each link carrying the full product.
func (db *DB) GetComparison(ctx context.Context, id int64) (*model.Comparison, error) {
	c, err := scanComparison(db.conn.QueryRowContext(ctx,
		`SELECT `+comparisonColumns+` FROM comparisons WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comparison", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting comparison %d: %w", id, err)
	}

	comparisons := []model.Comparison{*c}
	if err := attachLinks(ctx, db.conn, comparisons); err != nil {
		return nil, err
	}
	return &comparisons[0], nil
}

func (db *DB) ListComparisons(ctx context.Context, f repository.ComparisonFilter) ([]model.Comparison, error) {
	query := `SELECT ` + comparisonColumns + ` FROM comparisons`
	args := []any{}
	if f.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, f.UserID)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comparisons: %w", err)
	}

	comparisons := []model.Comparison{}
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning comparison row: %w", err)
		}
		comparisons = append(comparisons, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating comparisons: %w", err)
	}
	rows.Close()

	if err := attachLinks(ctx, db.conn, comparisons); err != nil {
		return nil, err
	}
	return comparisons, nil
}

// UpdateComparison rewrites title, description and date. A non-nil
// productIDs also replaces every link, inside the same transaction.
func (db *DB) UpdateComparison(ctx context.Context, c *model.Comparison, productIDs []int64) error {
	c.UpdatedAt = time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE comparisons SET title = ?, description = ?, date_created = ?, updated_at = ?
			 WHERE id = ?`,
			c.Title, c.Description, c.DateCreated, c.UpdatedAt, c.ID,
		)
		if err != nil {
			return err
		}
		if err := checkAffected(result, apperror.NotFound("comparison", strconv.FormatInt(c.ID, 10))); err != nil {
			return err
		}
		if productIDs == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comparison_products WHERE comparison_id = ?`, c.ID); err != nil {
			return err
		}
		return insertLinks(ctx, tx, c.ID, productIDs)
	})
	if err != nil {
		return translateComparisonWriteErr(fmt.Sprintf("updating comparison %d", c.ID), err)
	}

	stored, err := db.GetComparison(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// DeleteComparison removes the comparison; ON DELETE CASCADE removes its links.
func (db *DB) DeleteComparison(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM comparisons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comparison %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("comparison", strconv.FormatInt(id, 10)))
}

func scanComparison(row rowScanner) (*model.Comparison, error) {
	var (
		c      model.Comparison
		userID string
	)
	if err := row.Scan(
		&c.ID, &userID, &c.Title, &c.Description, &c.DateCreated, &c.ProductTypeID,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.UserID = &userID
	c.Products = []model.ComparisonProduct{}
	return &c, nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, comparisonID int64, productIDs []int64) error {
	for _, pid := range productIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comparison_products (comparison_id, product_id) VALUES (?, ?)`,
			comparisonID, pid,
		); err != nil {
			return err
		}
	}
	return nil
}

// attachLinks fills Products for every comparison: one query for the links,
// one for the linked products, one for their metadata.
func attachLinks(ctx context.Context, q querier, comparisons []model.Comparison) error {
	if len(comparisons) == 0 {
		return nil
	}

	index := make(map[int64]int, len(comparisons))
	ids := make([]int64, 0, len(comparisons))
	for i, c := range comparisons {
		index[c.ID] = i
		ids = append(ids, c.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, comparison_id, product_id FROM comparison_products
		 WHERE comparison_id IN (`+placeholders(len(ids))+`)
		 ORDER BY id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading comparison links: %w", err)
	}

	var (
		links      []model.ComparisonProduct
		productIDs []int64
		seen       = map[int64]bool{}
	)
	for rows.Next() {
		var l model.ComparisonProduct
		if err := rows.Scan(&l.ID, &l.ComparisonID, &l.ProductID); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scanning comparison link: %w", err)
		}
		links = append(links, l)
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			productIDs = append(productIDs, l.ProductID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite: iterating comparison links: %w", err)
	}
	rows.Close()

	products, err := productsByID(ctx, q, productIDs)
	if err != nil {
		return err
	}

	for _, l := range links {
		if p, ok := products[l.ProductID]; ok {
			l.Product = p
		}
		i := index[l.ComparisonID]
		comparisons[i].Products = append(comparisons[i].Products, l)
	}
	return nil
}

func productsByID(ctx context.Context, q querier, ids []int64) (map[int64]*model.Product, error) {
	out := make(map[int64]*model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading linked products: %w", err)
	}

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning linked product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating linked products: %w", err)
	}
	rows.Close()

	if err := attachMetadata(ctx, q, products); err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func translateComparisonWriteErr(op string, err error) error {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return err
	case isForeignKeyViolation(err):
		return apperror.ValidationFailed("product_ids", "comparison references an unknown user, product type or product")
	case isUniqueViolation(err):
		return apperror.ValidationFailed("id", "comparison id already exists")
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}
