// Package auth implements identity for the API: bcrypt credentials, signed
// bearer tokens, resolution of a token to a stored user, and the ownership
// guard used before mutations.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /auth/login checks the password and issues a JWT
//  2. The client sends it back as "Authorization: Bearer <jwt>"
//  3. The Resolver validates the JWT and loads the user it names
//  4. Handlers/services call AuthorizeMutate before changing owned resources
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<email>","uid":"<user id>","role":"user","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/comparathor/internal/model"
)

const issuer = "comparathor"

// ErrInvalidToken is returned by Decode for every rejected token: bad
// signature, wrong algorithm, malformed payload, missing claims or expiry.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims are the identity facts carried inside a token.
//
// Role travels in the token so clients can render role-dependent UI without
// an extra call. The server itself re-reads the role from the store (see
// Resolver), so a stale claim never grants anything.
type Claims struct {
	Email     string
	UserID    string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the JWT payload. "sub" holds the email; "uid" and "role"
// are private claims.
type tokenClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens. The secret is
// injected once at startup and never changes for the life of the process.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token TTL must be positive, got %s", ttl)
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime given to issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given identity using the configured TTL.
// IssuedAt and ExpiresAt in c are ignored and set by the service.
func (s *TokenService) Issue(c Claims) (string, error) {
	return s.IssueWithTTL(c, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. Used in tests (a
// negative TTL yields an already-expired token).
func (s *TokenService) IssueWithTTL(c Claims, ttl time.Duration) (string, error) {
	if c.Email == "" || c.UserID == "" {
		return "", errors.New("auth: token claims need an email and a user id")
	}

	now := time.Now()
	tc := tokenClaims{
		UserID: c.UserID,
		Role:   string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Email,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Decode parses and verifies a JWT string and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Algorithm is HS256 (prevents "alg: none" and key-confusion attacks)
//   - Issuer matches
//   - exp is present and in the future
//
// Every failure wraps ErrInvalidToken.
func (s *TokenService) Decode(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if tc.Subject == "" || tc.UserID == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	role, err := model.ParseRole(tc.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c := &Claims{
		Email:  tc.Subject,
		UserID: tc.UserID,
		Role:   role,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
