// Package model defines the data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of permission levels a User can hold.
//
// Role implements encoding.TextUnmarshaler, so decoding a JSON body with any
// other value fails at parse time instead of reaching the service layer. An
// empty string decodes to the zero Role, meaning "not chosen".
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrInvalidRole is wrapped by every ParseRole failure.
var ErrInvalidRole = errors.New("model: invalid role")

// ParseRole converts a raw string into a Role, rejecting anything outside
// {user, admin}. Matching is exact: "Admin" is not a role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w %q (must be %q or %q)", ErrInvalidRole, s, RoleUser, RoleAdmin)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r *Role) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = ""
		return nil
	}
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User represents a registered account.
//
// PasswordHash carries the `json:"-"` tag: the bcrypt digest must never leave
// the server, even when a handler serializes a whole User by mistake.
type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an address so uniqueness checks are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
