package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
)

// UserLookup is the slice of the user repository the Resolver needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Resolver turns the Authorization header of a request into a stored User.
//
// It has two modes:
//   - ResolveRequired: no token, bad token, or unknown subject → Unauthorized
//   - ResolveOptional: no token → (nil, nil), i.e. an anonymous caller;
//     a token that is present but bad is still Unauthorized, never anonymous
type Resolver struct {
	tokens *TokenService
	users  UserLookup
	logger *slog.Logger
}

func NewResolver(tokens *TokenService, users UserLookup, logger *slog.Logger) *Resolver {
	return &Resolver{tokens: tokens, users: users, logger: logger}
}

// ResolveRequired authenticates a request that must carry a valid token.
//
// The returned user is the one currently in the store, so its Role reflects
// any admin change made after the token was issued.
func (r *Resolver) ResolveRequired(ctx context.Context, authorization string) (*model.User, error) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return nil, apperror.Unauthorized()
	}

	claims, err := r.tokens.Decode(raw)
	if err != nil {
		r.logger.Debug("token rejected", slog.String("reason", err.Error()))
		return nil, apperror.Unauthorized()
	}

	user, err := r.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			r.logger.Debug("token subject no longer exists", slog.String("userID", claims.UserID))
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("auth: loading token subject %s: %w", claims.UserID, err)
	}

	return user, nil
}

// ResolveOptional authenticates a request that may be anonymous.
// A missing Authorization header yields (nil, nil).
func (r *Resolver) ResolveOptional(ctx context.Context, authorization string) (*model.User, error) {
	if strings.TrimSpace(authorization) == "" {
		return nil, nil
	}
	return r.ResolveRequired(ctx, authorization)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive (RFC 6750).
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
