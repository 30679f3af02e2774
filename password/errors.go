package password

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrUnsupportedScheme is returned when no configured hasher recognises a hash.
	ErrUnsupportedScheme = errors.New("password: unsupported hash scheme")
	// ErrEmptySecret is returned by Hash for an empty secret.
	ErrEmptySecret = errors.New("password: empty secret")
	// ErrSecretTooLong is returned when a secret exceeds the configured byte limit.
	ErrSecretTooLong = errors.New("password: secret too long")
)

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, reason)
}
