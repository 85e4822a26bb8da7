package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, role, created_at, updated_at`

// CreateUser inserts a new user.
//
// ID GENERATION WITH xid:
// When u.ID is empty we generate one: 20 chars, URL-safe, sortable by
// creation time. A caller-supplied ID (registration, seed files) is kept.
//
// The UNIQUE constraints on id and email are the final word on duplicates;
// a violation comes back as a validation error, not a 500.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("email", "email or user id already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.ID, err)
	}

	return nil
}

// GetUserByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email (case-insensitive).
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdateUser rewrites email, password hash and role.
func (db *DB) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, password_hash = ?, role = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.PasswordHash, string(u.Role), u.UpdatedAt, u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("email", "email already registered")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", u.ID, err)
	}
	return checkAffected(result, apperror.NotFound("user", u.ID))
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
