package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("hello"))
	})
}

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(okHandler(http.StatusTeapot))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?skip=1", nil))

	out := buf.String()
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=5")
	assert.Contains(t, out, "path=/products")
	assert.Contains(t, out, "level=WARN", "4xx logs at warn")
}

func TestLogger_DoesNotLogAuthorization(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer secret-token-value")
	Logger(logger)(okHandler(http.StatusOK)).ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, buf.String(), "secret-token-value")
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000/", " https://app.example.com "})(okHandler(http.StatusOK))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/comparisons", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.GreaterOrEqual(t, rr.Code, 200)
		assert.Less(t, rr.Code, 300)
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers")), "authorization")
		assert.Equal(t, "600", rr.Header().Get("Access-Control-Max-Age"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
		assert.Empty(t, rr.Body.String(), "preflight never reaches the handler")
	})

	t.Run("preflight from unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/comparisons", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anything.example")
		rr := httptest.NewRecorder()
		CORS([]string{"*"})(okHandler(http.StatusOK)).ServeHTTP(rr, req)

		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anything.example")
		rr := httptest.NewRecorder()
		CORS(nil)(okHandler(http.StatusOK)).ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
