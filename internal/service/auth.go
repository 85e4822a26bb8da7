package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// MinPasswordLength is the shortest accepted password. The upper bound is
// bcrypt's auth.MaxPasswordBytes.
const MinPasswordLength = 8

// AuthService handles registration and login.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ PasswordService (bcrypt)
//	                               ↘ TokenService (JWT)
type AuthService struct {
	users            repository.UserRepository
	tokens           *auth.TokenService
	passwords        *auth.PasswordService
	logger           *slog.Logger
	allowAdminSignup bool

	// dummyHash is compared against when the email is unknown, so a login for
	// a missing account costs the same bcrypt work as a wrong password.
	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
	allowAdminSignup bool,
) *AuthService {
	return &AuthService{
		users:            users,
		tokens:           tokens,
		passwords:        passwords,
		logger:           logger,
		allowAdminSignup: allowAdminSignup,
	}
}

// RegisterInput is what a new account supplies. Role and UserID are optional:
// an empty Role means model.RoleUser and an empty UserID is generated.
type RegisterInput struct {
	Email    string
	Password string
	Role     string
	UserID   string
}

// LoginResult is the bearer token handed back to the client.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

// Register validates in, hashes the password and stores a new user.
//
// A duplicate email (or duplicate explicit user id) fails with
// apperror.ErrValidation; the first registration always wins.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	role := model.RoleUser
	if in.Role != "" {
		if role, err = model.ParseRole(in.Role); err != nil {
			return nil, apperror.ValidationFailed("role", "role must be \"user\" or \"admin\"")
		}
	}
	if role == model.RoleAdmin && !s.allowAdminSignup {
		return nil, apperror.Forbidden("admin accounts cannot be self-registered")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		ID:           strings.TrimSpace(in.UserID),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to register user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login checks the credentials and issues a token.
//
// Unknown email and wrong password produce the same apperror.Unauthorized
// after the same amount of bcrypt work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up user: %w", err)
		}
		s.passwords.Verify(password, s.dummy())
		return nil, apperror.Unauthorized()
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		s.logger.Info("login rejected", slog.String("userID", user.ID))
		return nil, apperror.Unauthorized()
	}

	token, err := s.tokens.Issue(auth.Claims{Email: user.Email, UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &LoginResult{AccessToken: token, TokenType: "bearer", UserID: user.ID}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		// Hash only fails for input over 72 bytes.
		s.dummyHash, _ = s.passwords.Hash("comparathor-dummy-password")
	})
	return s.dummyHash
}

func normalizeEmail(raw string) (string, error) {
	email := model.NormalizeEmail(raw)
	if err := validate.Var(email, "required,email"); err != nil {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d bytes", MinPasswordLength, auth.MaxPasswordBytes))
	}
	return nil
}
