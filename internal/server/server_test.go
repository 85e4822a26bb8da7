package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/comparathor/internal/config"
)

// END-TO-END TESTS:
// These drive the real router, middleware, services and an in-memory SQLite
// database through httptest. No port is opened.

func testConfig() *config.Config {
	c := config.Defaults()
	c.DBPath = ":memory:"
	c.JWTSecret = "server-test-secret-0123456789"
	c.TokenTTL = time.Hour
	c.BcryptCost = 4
	c.AllowAdminSignup = true
	c.CORSOrigins = []string{"http://localhost:3000"}
	return &c
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// signup registers and logs in, returning the user id and access token.
func signup(t *testing.T, h http.Handler, email, role string) (string, string) {
	t.Helper()
	body := map[string]string{"email": email, "password": "password123"}
	if role != "" {
		body["role"] = role
	}
	rr := do(t, h, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	login := decode[map[string]string](t, rr)
	require.Equal(t, "bearer", login["token_type"])
	return login["user_id"], login["access_token"]
}

type fixture struct {
	h          http.Handler
	adminToken string
	aliceID    string
	aliceToken string
	bobToken   string
	typeID     int64
	productIDs []int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{h: newTestServer(t, testConfig())}
	_, f.adminToken = signup(t, f.h, "admin@example.com", "admin")
	f.aliceID, f.aliceToken = signup(t, f.h, "alice@example.com", "")
	_, f.bobToken = signup(t, f.h, "bob@example.com", "")

	rr := do(t, f.h, http.MethodPost, "/product-types", f.adminToken, map[string]any{
		"name":            "Laptop",
		"description":     "Portable computers",
		"metadata_schema": map[string]string{"ram": "GB"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	f.typeID = int64(decode[map[string]any](t, rr)["id"].(float64))

	for _, name := range []string{"ThinkPad", "XPS"} {
		rr := do(t, f.h, http.MethodPost, "/products", f.aliceToken, map[string]any{
			"id_product_type": f.typeID,
			"name":            name,
			"price":           "999.99",
			"metadata":        []map[string]any{{"attribute": "ram", "value": "16", "score": 3}},
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		f.productIDs = append(f.productIDs, int64(decode[map[string]any](t, rr)["id"].(float64)))
	}
	return f
}

func (f *fixture) comparisonBody() map[string]any {
	return map[string]any{
		"title":           "Ultrabooks",
		"description":     "Thin and light",
		"date_created":    "2024-03-01",
		"product_type_id": f.typeID,
		"product_ids":     []int64{f.productIDs[1], f.productIDs[0]},
	}
}

type comparisonView struct {
	ID       int64   `json:"id"`
	UserID   *string `json:"id_user"`
	Products []struct {
		ProductID int64           `json:"product_id"`
		Product   *map[string]any `json:"product"`
	} `json:"products"`
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, testConfig())

	rr := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAuthFlow(t *testing.T) {
	h := newTestServer(t, testConfig())
	id, token := signup(t, h, "carol@example.com", "")

	t.Run("duplicate email", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "carol@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("empty role registers a user", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "dave@example.com", "password": "password123", "role": "",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "user", decode[map[string]any](t, rr)["role"])
	})

	t.Run("unknown role is reported on the role field", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "erin@example.com", "password": "password123", "role": "root",
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "role", decode[map[string]any](t, rr)["field"])
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "carol@example.com", "password": "not-the-password",
		})
		unknown := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "not-the-password",
		})
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("me", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/users/me", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		me := decode[map[string]any](t, rr)
		assert.Equal(t, id, me["user_id"])
		assert.Equal(t, "user", me["role"])
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("missing or bad token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/users/me", "", nil).Code)
		assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/users/me", "garbage", nil).Code)
	})
}

func TestAdminSignupDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.AllowAdminSignup = false
	h := newTestServer(t, cfg)

	rr := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "eve@example.com", "password": "password123", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	rr := do(t, f.h, http.MethodPost, "/product-types", f.aliceToken, map[string]any{"name": "Phone"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	path := fmt.Sprintf("/admin/users/%s/role", f.aliceID)
	assert.Equal(t, http.StatusForbidden,
		do(t, f.h, http.MethodPut, path, f.aliceToken, map[string]string{"role": "admin"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, f.h, http.MethodPut, path, f.adminToken, map[string]string{"role": "superuser"}).Code)

	rr = do(t, f.h, http.MethodPut, path, f.adminToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// The stored role is authoritative: alice's old token now passes admin checks.
	rr = do(t, f.h, http.MethodPost, "/product-types", f.aliceToken, map[string]any{"name": "Phone"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestComparisonFlow(t *testing.T) {
	f := newFixture(t)

	t.Run("anonymous is answered but not stored", func(t *testing.T) {
		rr := do(t, f.h, http.MethodPost, "/comparisons", "", f.comparisonBody())
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		view := decode[comparisonView](t, rr)
		assert.Equal(t, int64(0), view.ID)
		assert.Nil(t, view.UserID)
		require.Len(t, view.Products, 2)
		assert.Equal(t, f.productIDs[1], view.Products[0].ProductID)
		assert.Nil(t, view.Products[0].Product)

		list := do(t, f.h, http.MethodGet, "/comparisons", "", nil)
		assert.JSONEq(t, `[]`, list.Body.String())
	})

	t.Run("invalid token is never anonymous", func(t *testing.T) {
		rr := do(t, f.h, http.MethodPost, "/comparisons", "not.a.jwt", f.comparisonBody())
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown product is a validation error", func(t *testing.T) {
		body := f.comparisonBody()
		body["product_ids"] = []int64{f.productIDs[0], 9999}
		rr := do(t, f.h, http.MethodPost, "/comparisons", f.aliceToken, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	rr := do(t, f.h, http.MethodPost, "/comparisons", f.aliceToken, f.comparisonBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[comparisonView](t, rr)
	require.NotZero(t, created.ID)
	require.NotNil(t, created.UserID)
	assert.Equal(t, f.aliceID, *created.UserID)
	require.Len(t, created.Products, 2)
	assert.Equal(t, f.productIDs[1], created.Products[0].ProductID, "links keep request order")
	require.NotNil(t, created.Products[0].Product)
	assert.Equal(t, "XPS", (*created.Products[0].Product)["name"])

	path := fmt.Sprintf("/comparisons/%d", created.ID)

	t.Run("get", func(t *testing.T) {
		rr := do(t, f.h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("non-owner cannot update or delete", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden,
			do(t, f.h, http.MethodPut, path, f.bobToken, map[string]string{"title": "Mine now"}).Code)
		assert.Equal(t, http.StatusForbidden, do(t, f.h, http.MethodDelete, path, f.bobToken, nil).Code)
	})

	t.Run("owner updates links", func(t *testing.T) {
		rr := do(t, f.h, http.MethodPut, path, f.aliceToken, map[string]any{"product_ids": []int64{f.productIDs[0]}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		view := decode[comparisonView](t, rr)
		require.Len(t, view.Products, 1)
		assert.Equal(t, f.productIDs[0], view.Products[0].ProductID)
	})

	t.Run("delete then delete again", func(t *testing.T) {
		rr := do(t, f.h, http.MethodDelete, path, f.aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"detail":"Comparison deleted"}`, rr.Body.String())

		assert.Equal(t, http.StatusNotFound, do(t, f.h, http.MethodDelete, path, f.aliceToken, nil).Code)
		assert.Equal(t, http.StatusNotFound, do(t, f.h, http.MethodGet, path, "", nil).Code)
	})
}

func TestProductTypeDeleteWhileReferenced(t *testing.T) {
	f := newFixture(t)
	path := fmt.Sprintf("/product-types/%d", f.typeID)

	assert.Equal(t, http.StatusConflict, do(t, f.h, http.MethodDelete, path, f.adminToken, nil).Code)

	for _, id := range f.productIDs {
		rr := do(t, f.h, http.MethodDelete, fmt.Sprintf("/products/%d", id), f.aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, http.StatusOK, do(t, f.h, http.MethodDelete, path, f.adminToken, nil).Code)
}

func TestPrefixAndTrailingSlash(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/products", "/products/", "/api/v1/products", "/api/v1/products/"} {
		rr := do(t, f.h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Len(t, decode[[]map[string]any](t, rr), 2, path)
	}

	rr := do(t, f.h, http.MethodGet, "/api/v1/products?limit=1", "", nil)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/comparisons", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.GreaterOrEqual(t, rr.Code, 200)
	assert.Less(t, rr.Code, 300)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")

	// An origin outside CORS_ORIGINS gets no grant.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/comparisons", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_AppliesSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - email: seeded@example.com
    password: password123
product_types:
  - name: Monitor
`), 0o600))

	cfg := testConfig()
	cfg.SeedFile = path
	h := newTestServer(t, cfg)

	rr := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "seeded@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	types := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/product-types", "", nil))
	require.Len(t, types, 1)
	assert.Equal(t, "Monitor", types[0]["name"])
}

func TestNew_BadSeedFileFails(t *testing.T) {
	cfg := testConfig()
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestProductDeleteWhileCompared(t *testing.T) {
	f := newFixture(t)

	body := f.comparisonBody()
	body["product_ids"] = []int64{f.productIDs[0]}
	rr := do(t, f.h, http.MethodPost, "/comparisons", f.bobToken, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	comparisonID := decode[comparisonView](t, rr).ID

	productPath := fmt.Sprintf("/products/%d", f.productIDs[0])
	assert.Equal(t, http.StatusConflict, do(t, f.h, http.MethodDelete, productPath, f.aliceToken, nil).Code)

	// Bob's comparison still lists the product.
	rr = do(t, f.h, http.MethodGet, fmt.Sprintf("/comparisons/%d", comparisonID), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[comparisonView](t, rr).Products, 1)

	require.Equal(t, http.StatusOK,
		do(t, f.h, http.MethodDelete, fmt.Sprintf("/comparisons/%d", comparisonID), f.bobToken, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, f.h, http.MethodDelete, productPath, f.aliceToken, nil).Code)
}
