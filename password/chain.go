package password

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// Hasher is implemented by every supported hashing scheme.
type Hasher interface {
	Scheme() string
	Handles(encoded string) bool
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
}

// Chain hashes with a primary scheme and verifies against the primary or any
// legacy scheme, selected by the hash prefix.
//
// Hashes produced by a legacy scheme always report NeedsUpgrade.
type Chain struct {
	primary Hasher
	legacy  []Hasher
}

// NewChain builds a Chain. primary must not be nil.
func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

// Primary returns the scheme used for new hashes.
func (c *Chain) Primary() Hasher { return c.primary }

// Scheme returns the primary scheme.
func (c *Chain) Scheme() string { return c.primary.Scheme() }

// Handles reports whether any configured scheme recognises encoded.
func (c *Chain) Handles(encoded string) bool {
	_, ok := c.pick(encoded)
	return ok
}

// Hash hashes with the primary scheme.
func (c *Chain) Hash(secret string) (string, error) {
	return c.primary.Hash(secret)
}

// Verify dispatches to the scheme that recognises encoded, or returns
// ErrUnsupportedScheme.
func (c *Chain) Verify(secret string, encoded string) (bool, error) {
	h, ok := c.pick(encoded)
	if !ok {
		return false, ErrUnsupportedScheme
	}
	return h.Verify(secret, encoded)
}

// NeedsUpgrade is true for every legacy hash and for primary hashes with
// weaker parameters.
func (c *Chain) NeedsUpgrade(encoded string) (bool, error) {
	h, ok := c.pick(encoded)
	if !ok {
		return false, ErrUnsupportedScheme
	}
	if h != c.primary {
		return true, nil
	}
	return h.NeedsUpgrade(encoded)
}

func (c *Chain) pick(encoded string) (Hasher, bool) {
	if c.primary.Handles(encoded) {
		return c.primary, true
	}
	for _, h := range c.legacy {
		if h.Handles(encoded) {
			return h, true
		}
	}
	return nil, false
}

// RandomSecret returns a random printable secret that every scheme accepts.
func RandomSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DummyHash hashes a random throwaway secret with h. Comparing against it costs
// the same as comparing against a real hash produced by h, which lets callers
// spend equal time on unknown identities.
func DummyHash(h Hasher) (string, error) {
	secret, err := RandomSecret()
	if err != nil {
		return "", err
	}
	return h.Hash(secret)
}
