package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// context.WithValue accepts any key. A package-private type means only THIS
// package can create a key of type contextKey, so no other package can read
// or shadow the user stored here.
type contextKey string

const userKey contextKey = "user"

const (
	unauthorizedBody = `{"error":"unauthorized","message":"valid authentication required"}`
	forbiddenBody    = `{"error":"forbidden","message":"administrator role required"}`
	internalBody     = `{"error":"internal_error","message":"An internal error occurred"}`
)

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the bearer token from the Authorization header, resolves it to a
// stored user and puts that user in the request context. Missing or invalid
// tokens stop the chain with 401 Unauthorized.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1.
func RequireAuth(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveRequired(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth lets anonymous requests through but still rejects bad tokens.
//
// Unlike a "best effort" middleware, a token that is present but invalid is
// a 401: the caller clearly meant to authenticate, and silently treating them
// as anonymous would hide the failure. Handlers read the outcome with
// CallerFromContext.
func OptionalAuth(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveOptional(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeAuthError(w, err)
				return
			}
			if user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after RequireAuth. It answers 403 for any
// authenticated user whose stored role is not admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, unauthorizedBody)
			return
		}
		if !user.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, forbiddenBody)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
// Returns (nil, false) if the request is anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// CallerFromContext reports who issued the request as a model.Caller.
func CallerFromContext(ctx context.Context) model.Caller {
	u, _ := UserFromContext(ctx)
	return model.CallerOf(u)
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperror.ErrUnauthorized) {
		writeJSONError(w, http.StatusUnauthorized, unauthorizedBody)
		return
	}
	writeJSONError(w, http.StatusInternalServerError, internalBody)
}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="comparathor"`)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body + "\n"))
}
