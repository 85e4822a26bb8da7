package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
	"github.com/sakif/comparathor/internal/repository/sqlite"
)

const fixture = `
users:
  - user_id: alice
    email: Alice@Example.com
    password: correct-horse
    role: admin
  - email: bob@example.com
    password: battery-staple
product_types:
  - id: 1
    name: Laptop
    description: Portable computers
    metadata_schema:
      ram: GB
      cpu: model
products:
  - id: 10
    user_id: alice
    product_type_id: 1
    name: ThinkPad X1
    brand: Lenovo
    price: "1499.00"
    score: 8.5
    metadata:
      - {attribute: ram, value: "16", score: 7}
      - {attribute: cpu, value: i7, score: 8}
  - id: 11
    user_id: alice
    product_type_id: 1
    name: XPS 13
    price: "1299.50"
comparisons:
  - id: 5
    user_id: alice
    title: Ultrabooks
    date_created: "2024-03-01"
    product_type_id: 1
    product_ids: [11, 10]
`

func newLoader(t *testing.T) (*Loader, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLoader(db, auth.NewPasswordServiceForTest(), logger), db
}

func TestLoad_InsertsEverySection(t *testing.T) {
	loader, db := newLoader(t)
	ctx := context.Background()

	st, err := loader.Load(ctx, []byte(fixture))
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 2, ProductTypes: 1, Products: 2, Comparisons: 1}, st)

	alice, err := db.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err, "emails are normalized to lower case")
	assert.Equal(t, "alice", alice.ID)
	assert.Equal(t, model.RoleAdmin, alice.Role)
	assert.NotEqual(t, "correct-horse", alice.PasswordHash)
	assert.True(t, auth.NewPasswordServiceForTest().Verify("correct-horse", alice.PasswordHash))

	bob, err := db.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, bob.Role, "role defaults to user")
	assert.NotEmpty(t, bob.ID, "id is generated when omitted")

	p, err := db.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "1499", p.Price.String())
	require.Len(t, p.Metadata, 2)
	assert.Equal(t, "ram", p.Metadata[0].Attribute)
	assert.Equal(t, "cpu", p.Metadata[1].Attribute)

	c, err := db.GetComparison(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 10}, c.ProductIDs(), "link order follows the file")
	require.NotNil(t, c.Products[0].Product)
	assert.Equal(t, "XPS 13", c.Products[0].Product.Name)
}

func TestLoad_IsIdempotent(t *testing.T) {
	loader, db := newLoader(t)
	ctx := context.Background()

	_, err := loader.Load(ctx, []byte(fixture))
	require.NoError(t, err)

	st, err := loader.Load(ctx, []byte(fixture))
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 6}, st)

	n, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := db.ListComparisons(ctx, repository.ComparisonFilter{ListOptions: repository.ListOptions{Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "users: [\n"},
		{"user without password", "users:\n  - email: a@example.com\n"},
		{"unknown role", "users:\n  - email: a@example.com\n    password: pw12345678\n    role: root\n"},
		{"product type without name", "product_types:\n  - id: 1\n"},
		{"bad price", "products:\n  - name: x\n    price: cheap\n"},
		{"comparison without owner", "comparisons:\n  - title: x\n    date_created: \"2024-01-01\"\n"},
		{"bad date", "comparisons:\n  - user_id: a\n    title: x\n    date_created: 01/02/2024\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _ := newLoader(t)
			_, err := loader.Load(context.Background(), []byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnknownReferenceIsValidationError(t *testing.T) {
	loader, _ := newLoader(t)
	doc := `
users:
  - user_id: alice
    email: alice@example.com
    password: correct-horse
products:
  - user_id: alice
    product_type_id: 99
    name: Orphan
`
	_, err := loader.Load(context.Background(), []byte(doc))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestLoadFile(t *testing.T) {
	loader, _ := newLoader(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	st, err := loader.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Users)

	_, err = loader.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
