// Package store holds what the credential store backends share: the write
// side used for seeding and the canonical form identities are stored in.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/password"
	"github.com/google/uuid"
)

// ErrDuplicateIdentity is returned by Create when the identity already has a
// credential.
var ErrDuplicateIdentity = errors.New("identity already exists")

// Backend is a credential store that can also create records.
type Backend interface {
	loginguard.CredentialStore
	loginguard.CredentialUpdater
	Create(ctx context.Context, rec loginguard.CredentialRecord) error
}

// Canonical is the form identities are stored and looked up in.
func Canonical(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Seed hashes secret and creates a record for identity with display name
// name. An existing identity is left untouched and its account reference
// returned.
func Seed(ctx context.Context, b Backend, hasher password.Hasher, identity, name, secret string) (string, error) {
	if Canonical(identity) == "" {
		return "", errors.New("seed identity is empty")
	}

	existing, err := b.FindByIdentity(ctx, identity)
	switch {
	case err == nil:
		return existing.AccountRef, nil
	case !errors.Is(err, loginguard.ErrCredentialNotFound):
		return "", fmt.Errorf("seed lookup: %w", err)
	}

	hash, err := hasher.Hash(secret)
	if err != nil {
		return "", fmt.Errorf("seed hash: %w", err)
	}

	rec := loginguard.CredentialRecord{
		Identity:   identity,
		Name:       name,
		SecretHash: hash,
		AccountRef: uuid.NewString(),
	}
	if err := b.Create(ctx, rec); err != nil {
		return "", err
	}
	return rec.AccountRef, nil
}
