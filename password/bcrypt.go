package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes of a secret.
const bcryptMaxBytes = 72

// Bcrypt verifies (and optionally produces) bcrypt hashes. It exists mainly
// so credentials imported from older systems keep working until they are
// upgraded on the next successful login.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Scheme returns "bcrypt".
func (b *Bcrypt) Scheme() string { return "bcrypt" }

// Handles reports whether encoded carries a $2a$, $2b$ or $2y$ prefix.
func (b *Bcrypt) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// Hash returns a bcrypt hash of secret at the configured cost. Secrets over
// 72 bytes are refused rather than silently truncated.
func (b *Bcrypt) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if len(secret) > bcryptMaxBytes {
		return "", ErrSecretTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify compares secret with encoded. A secret over 72 bytes returns
// ErrSecretTooLong without hashing.
func (b *Bcrypt) Verify(secret string, encoded string) (bool, error) {
	if len(secret) > bcryptMaxBytes {
		return false, ErrSecretTooLong
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encoded uses a lower cost than b.
func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
