// Package seed loads fixture data from a YAML file into the store.
//
// FILE FORMAT:
//
//	users:
//	  - user_id: alice
//	    email: alice@example.com
//	    password: correct-horse
//	    role: admin
//	product_types:
//	  - id: 1
//	    name: Laptop
//	    description: Portable computers
//	    metadata_schema: {ram: GB, cpu: model}
//	products:
//	  - id: 1
//	    user_id: alice
//	    product_type_id: 1
//	    name: ThinkPad X1
//	    price: "1499.00"
//	    metadata:
//	      - {attribute: ram, value: "16", score: 7.5}
//	comparisons:
//	  - id: 1
//	    user_id: alice
//	    title: Ultrabooks
//	    date_created: "2024-03-01"
//	    product_type_id: 1
//	    product_ids: [1]
//
// IDEMPOTENCY:
// Rows that already exist are skipped: users by email, product types by name
// or explicit id, products and comparisons by explicit id. Running the same
// file twice leaves the store unchanged. Products and comparisons without an
// id are inserted on every run.
//
// Seeding writes through the repositories directly. It is an operator tool,
// so the role checks of the service layer do not apply.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// File mirrors the YAML document.
type File struct {
	Users        []User        `yaml:"users"`
	ProductTypes []ProductType `yaml:"product_types"`
	Products     []Product     `yaml:"products"`
	Comparisons  []Comparison  `yaml:"comparisons"`
}

type User struct {
	UserID   string `yaml:"user_id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type ProductType struct {
	ID             int64          `yaml:"id"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	MetadataSchema map[string]any `yaml:"metadata_schema"`
}

type Product struct {
	ID            int64      `yaml:"id"`
	UserID        string     `yaml:"user_id"`
	ProductTypeID int64      `yaml:"product_type_id"`
	Name          string     `yaml:"name"`
	Brand         string     `yaml:"brand"`
	Price         string     `yaml:"price"`
	Score         float64    `yaml:"score"`
	Image         string     `yaml:"image"`
	Metadata      []Metadata `yaml:"metadata"`
}

type Metadata struct {
	Attribute string  `yaml:"attribute"`
	Value     string  `yaml:"value"`
	Score     float64 `yaml:"score"`
}

type Comparison struct {
	ID            int64   `yaml:"id"`
	UserID        string  `yaml:"user_id"`
	Title         string  `yaml:"title"`
	Description   string  `yaml:"description"`
	DateCreated   string  `yaml:"date_created"`
	ProductTypeID int64   `yaml:"product_type_id"`
	ProductIDs    []int64 `yaml:"product_ids"`
}

// Stats counts inserted and skipped rows per section.
type Stats struct {
	Users, ProductTypes, Products, Comparisons int
	Skipped                                    int
}

// Store is everything the loader writes to. *sqlite.DB satisfies it.
type Store interface {
	repository.UserRepository
	repository.ProductTypeRepository
	repository.ProductRepository
	repository.ComparisonRepository
}

type Loader struct {
	store     Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewLoader(store Store, passwords *auth.PasswordService, logger *slog.Logger) *Loader {
	return &Loader{store: store, passwords: passwords, logger: logger}
}

// LoadFile reads and applies the YAML file at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("seed: reading %s: %w", path, err)
	}
	return l.Load(ctx, data)
}

// Load parses data and inserts its rows section by section, in dependency
// order. It stops at the first failing row.
func (l *Loader) Load(ctx context.Context, data []byte) (Stats, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Stats{}, fmt.Errorf("seed: parsing yaml: %w", err)
	}

	var st Stats
	steps := []func(context.Context, *File, *Stats) error{
		l.loadUsers,
		l.loadProductTypes,
		l.loadProducts,
		l.loadComparisons,
	}
	for _, step := range steps {
		if err := step(ctx, &f, &st); err != nil {
			return st, err
		}
	}

	l.logger.Info("seed applied",
		slog.Int("users", st.Users),
		slog.Int("product_types", st.ProductTypes),
		slog.Int("products", st.Products),
		slog.Int("comparisons", st.Comparisons),
		slog.Int("skipped", st.Skipped),
	)
	return st, nil
}

func (l *Loader) loadUsers(ctx context.Context, f *File, st *Stats) error {
	for i, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || u.Password == "" {
			return fmt.Errorf("seed: users[%d]: email and password are required", i)
		}

		exists, err := found(l.store.GetUserByEmail(ctx, email))
		if err != nil {
			return fmt.Errorf("seed: users[%d]: %w", i, err)
		}
		if exists {
			l.logger.Debug("seed: user exists, skipping", slog.String("email", email))
			st.Skipped++
			continue
		}

		role := model.RoleUser
		if u.Role != "" {
			if role, err = model.ParseRole(u.Role); err != nil {
				return fmt.Errorf("seed: users[%d]: %w", i, err)
			}
		}
		hash, err := l.passwords.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("seed: users[%d]: %w", i, err)
		}

		user := &model.User{ID: u.UserID, Email: email, PasswordHash: hash, Role: role}
		if err := l.store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed: users[%d]: %w", i, err)
		}
		st.Users++
	}
	return nil
}

func (l *Loader) loadProductTypes(ctx context.Context, f *File, st *Stats) error {
	for i, pt := range f.ProductTypes {
		name := strings.TrimSpace(pt.Name)
		if name == "" {
			return fmt.Errorf("seed: product_types[%d]: name is required", i)
		}

		exists, err := found(l.store.GetProductTypeByName(ctx, name))
		if err == nil && !exists && pt.ID > 0 {
			exists, err = found(l.store.GetProductType(ctx, pt.ID))
		}
		if err != nil {
			return fmt.Errorf("seed: product_types[%d]: %w", i, err)
		}
		if exists {
			st.Skipped++
			continue
		}

		schema := pt.MetadataSchema
		if schema == nil {
			schema = map[string]any{}
		}
		row := &model.ProductType{ID: pt.ID, Name: name, Description: pt.Description, MetadataSchema: schema}
		if err := l.store.CreateProductType(ctx, row); err != nil {
			return fmt.Errorf("seed: product_types[%d]: %w", i, err)
		}
		st.ProductTypes++
	}
	return nil
}

func (l *Loader) loadProducts(ctx context.Context, f *File, st *Stats) error {
	for i, p := range f.Products {
		if p.ID > 0 {
			exists, err := found(l.store.GetProduct(ctx, p.ID))
			if err != nil {
				return fmt.Errorf("seed: products[%d]: %w", i, err)
			}
			if exists {
				st.Skipped++
				continue
			}
		}

		price := decimal.Zero
		if p.Price != "" {
			var err error
			if price, err = decimal.NewFromString(p.Price); err != nil {
				return fmt.Errorf("seed: products[%d]: price %q: %w", i, p.Price, err)
			}
		}

		meta := make([]model.ProductMetadata, 0, len(p.Metadata))
		for _, m := range p.Metadata {
			meta = append(meta, model.ProductMetadata{Attribute: m.Attribute, Value: m.Value, Score: m.Score})
		}

		row := &model.Product{
			ID:            p.ID,
			UserID:        p.UserID,
			ProductTypeID: p.ProductTypeID,
			Name:          p.Name,
			Brand:         p.Brand,
			Price:         price,
			Score:         p.Score,
			Image:         p.Image,
			Metadata:      meta,
		}
		if err := l.store.CreateProduct(ctx, row); err != nil {
			return fmt.Errorf("seed: products[%d]: %w", i, err)
		}
		st.Products++
	}
	return nil
}

func (l *Loader) loadComparisons(ctx context.Context, f *File, st *Stats) error {
	for i, c := range f.Comparisons {
		if c.ID > 0 {
			exists, err := found(l.store.GetComparison(ctx, c.ID))
			if err != nil {
				return fmt.Errorf("seed: comparisons[%d]: %w", i, err)
			}
			if exists {
				st.Skipped++
				continue
			}
		}
		if c.UserID == "" {
			return fmt.Errorf("seed: comparisons[%d]: user_id is required", i)
		}
		if _, err := time.Parse(model.DateLayout, c.DateCreated); err != nil {
			return fmt.Errorf("seed: comparisons[%d]: date_created %q must be YYYY-MM-DD", i, c.DateCreated)
		}

		owner := c.UserID
		row := &model.Comparison{
			ID:            c.ID,
			UserID:        &owner,
			Title:         c.Title,
			Description:   c.Description,
			DateCreated:   c.DateCreated,
			ProductTypeID: c.ProductTypeID,
		}
		if err := l.store.CreateComparison(ctx, row, c.ProductIDs); err != nil {
			return fmt.Errorf("seed: comparisons[%d]: %w", i, err)
		}
		st.Comparisons++
	}
	return nil
}

// found turns a lookup result into "exists?", treating ErrNotFound as a
// plain false.
func found[T any](_ T, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
