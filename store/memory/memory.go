// Package memory is an in-process credential store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/store"
)

// Store keeps credentials in maps keyed by canonical identity and account
// reference. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]loginguard.CredentialRecord
	byAccount map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:      make(map[string]loginguard.CredentialRecord),
		byAccount: make(map[string]string),
	}
}

// FindByIdentity returns a copy of the record stored under the canonical
// form of identity.
func (s *Store) FindByIdentity(_ context.Context, identity string) (*loginguard.CredentialRecord, error) {
	s.mu.RLock()
	rec, ok := s.byID[store.Canonical(identity)]
	s.mu.RUnlock()
	if !ok {
		return nil, loginguard.ErrCredentialNotFound
	}
	return &rec, nil
}

// Create stores rec under its canonical identity. A taken identity or account
// reference returns store.ErrDuplicateIdentity.
func (s *Store) Create(_ context.Context, rec loginguard.CredentialRecord) error {
	key := store.Canonical(rec.Identity)
	rec.Identity = key

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[key]; ok {
		return store.ErrDuplicateIdentity
	}
	if _, ok := s.byAccount[rec.AccountRef]; ok {
		return store.ErrDuplicateIdentity
	}
	s.byID[key] = rec
	s.byAccount[rec.AccountRef] = key
	return nil
}

// UpdateSecretHash replaces the hash of accountRef.
func (s *Store) UpdateSecretHash(_ context.Context, accountRef, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byAccount[accountRef]
	if !ok {
		return loginguard.ErrCredentialNotFound
	}
	rec := s.byID[key]
	rec.SecretHash = secretHash
	s.byID[key] = rec
	return nil
}

// Len reports the number of stored credentials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
