package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// UserService covers self-service profile edits and admin role changes.
// Users are never deleted.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

// ProfileUpdate holds optional changes; nil fields are left alone.
type ProfileUpdate struct {
	Email    *string
	Password *string
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("user_id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// UpdateProfile changes the caller's own email and/or password.
func (s *UserService) UpdateProfile(ctx context.Context, caller *model.User, in ProfileUpdate) (*model.User, error) {
	if caller == nil {
		return nil, apperror.Unauthorized()
	}

	user, err := s.users.GetUserByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	if in.Password != nil {
		if err := checkPassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.passwords.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("service/user: hashing password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return user, nil
}

// UpdateRole sets another user's role. Only admins reach this (the route is
// behind auth.RequireAdmin); the check is repeated here for non-HTTP callers.
func (s *UserService) UpdateRole(ctx context.Context, caller *model.User, userID, rawRole string) (*model.User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only administrators can change roles")
	}
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return nil, apperror.ValidationFailed("role", "role must be \"user\" or \"admin\"")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("role updated",
		slog.String("userID", user.ID),
		slog.String("role", string(role)),
		slog.String("by", caller.ID),
	)
	return user, nil
}

func (s *UserService) save(ctx context.Context, user *model.User) error {
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to update user",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/user: updating user %s: %w", user.ID, err)
	}
	return nil
}
