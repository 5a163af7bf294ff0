package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used unless configured otherwise.
const DefaultCost = bcrypt.DefaultCost

type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

// NewPasswordHasher returns a bcrypt hasher. Costs outside bcrypt's range
// fall back to DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	ph := &PasswordHasher{cost: cost}

	// Hash of a random secret, compared against when the username is
	// unknown so that path costs the same as a real verify.
	secret := make([]byte, 18)
	_, _ = rand.Read(secret)
	ph.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(base64.RawStdEncoding.EncodeToString(secret)), cost)

	return ph
}

// Cost returns the configured work factor
func (ph *PasswordHasher) Cost() int {
	return ph.cost
}

// Hash generates a salted bcrypt hash of password
func (ph *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), ph.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks if password matches the hash. A mismatch is not an error.
func (ph *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
}

// VerifyDummy burns one verify against a hash no password matches.
func (ph *PasswordHasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(ph.dummyHash, []byte(password))
}
