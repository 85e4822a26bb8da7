package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

var _ repository.ProductTypeRepository = (*DB)(nil)

// CreateProductType inserts pt. A zero pt.ID lets SQLite assign one
// (NULLIF turns 0 into NULL, which INTEGER PRIMARY KEY auto-fills).
func (db *DB) CreateProductType(ctx context.Context, pt *model.ProductType) error {
	schema, err := encodeSchema(pt.MetadataSchema)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO product_types (id, name, description, metadata_schema)
		 VALUES (NULLIF(?, 0), ?, ?, ?)`,
		pt.ID, pt.Name, pt.Description, schema,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("name", fmt.Sprintf("product type %q already exists", pt.Name))
		}
		return fmt.Errorf("sqlite: inserting product type: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading product type id: %w", err)
	}
	pt.ID = id
	return nil
}

func (db *DB) GetProductType(ctx context.Context, id int64) (*model.ProductType, error) {
	pt, err := scanProductType(db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, metadata_schema FROM product_types WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("product type", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting product type %d: %w", id, err)
	}
	return pt, nil
}

func (db *DB) GetProductTypeByName(ctx context.Context, name string) (*model.ProductType, error) {
	pt, err := scanProductType(db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, metadata_schema FROM product_types WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("product type", name)
		}
		return nil, fmt.Errorf("sqlite: getting product type %q: %w", name, err)
	}
	return pt, nil
}

func (db *DB) ListProductTypes(ctx context.Context) ([]model.ProductType, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, metadata_schema FROM product_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing product types: %w", err)
	}
	defer rows.Close()

	types := []model.ProductType{}
	for rows.Next() {
		pt, err := scanProductType(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning product type row: %w", err)
		}
		types = append(types, *pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating product types: %w", err)
	}
	return types, nil
}

// DeleteProductType removes a type that nothing references. Products and
// comparisons point at types without ON DELETE CASCADE, so a referenced type
// fails the foreign key check and is reported as a conflict.
func (db *DB) DeleteProductType(ctx context.Context, id int64) error {
	idStr := strconv.FormatInt(id, 10)

	result, err := db.conn.ExecContext(ctx, `DELETE FROM product_types WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Conflict("product type", idStr)
		}
		return fmt.Errorf("sqlite: deleting product type %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("product type", idStr))
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProductType(row rowScanner) (*model.ProductType, error) {
	var (
		pt     model.ProductType
		schema string
	)
	if err := row.Scan(&pt.ID, &pt.Name, &pt.Description, &schema); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schema), &pt.MetadataSchema); err != nil {
		return nil, fmt.Errorf("decoding metadata schema of product type %d: %w", pt.ID, err)
	}
	if pt.MetadataSchema == nil {
		pt.MetadataSchema = map[string]any{}
	}
	return &pt, nil
}

func encodeSchema(schema map[string]any) (string, error) {
	if schema == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", apperror.ValidationFailed("metadata_schema", "metadata schema must be a JSON object")
	}
	return string(raw), nil
}
