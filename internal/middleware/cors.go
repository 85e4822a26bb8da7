package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS answers cross-origin requests from the listed origins. "*" allows any
// origin; an empty list disables CORS headers entirely. Credentials are never
// allowed: the API authenticates with bearer tokens, not cookies.
//
// Preflight requests (OPTIONS with Access-Control-Request-Method) end here and
// never reach the auth middleware.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed = append(allowed, o)
		}
	}

	// go-chi/cors treats an empty AllowedOrigins as "allow all".
	if len(allowed) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           600,
	})
}
