// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness is what makes brute-force attacks expensive.
//
// bcrypt automatically:
//   - Generates a random salt (two users with the same password get different hashes)
//   - Embeds the salt and cost in the output, so verification needs nothing else
//   - Controls the work factor via "cost" (higher = slower)
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are silently
// truncated by the algorithm, so Hash rejects them instead.
const MaxPasswordBytes = 72

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected:
// cost 4 in tests, BCRYPT_COST in production.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// A cost of 0 selects DefaultCost; anything outside bcrypt's range is an error.
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &PasswordService{cost: cost}, nil
}

// NewPasswordServiceForTest creates a PasswordService with bcrypt's minimum
// cost. Use this in tests in other packages to avoid ~250ms per hash.
//
// Do NOT use in production: cost 4 is far too weak.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// Store the returned string directly; it includes the salt and cost.
// Returns an error if the plaintext is longer than 72 bytes.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches a stored bcrypt hash.
//
// A malformed or truncated digest is simply a non-match: Verify never fails
// loudly, because callers only ever need "accept" or "reject".
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword compares in constant time, so response
// latency doesn't reveal how much of the password was right.
func (p *PasswordService) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
