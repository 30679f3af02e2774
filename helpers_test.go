package loginguard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/loginguard/password"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockCredentialStore struct {
	mu      sync.Mutex
	records map[string]CredentialRecord
	findErr error
	updated map[string]string

	findCalls atomic.Int64
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		records: map[string]CredentialRecord{},
		updated: map[string]string{},
	}
}

func (s *mockCredentialStore) add(identity, hash, ref string) {
	s.mu.Lock()
	s.records[identity] = CredentialRecord{Identity: identity, SecretHash: hash, AccountRef: ref}
	s.mu.Unlock()
}

func (s *mockCredentialStore) setFindErr(err error) {
	s.mu.Lock()
	s.findErr = err
	s.mu.Unlock()
}

func (s *mockCredentialStore) FindByIdentity(_ context.Context, identity string) (*CredentialRecord, error) {
	s.findCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	rec, ok := s.records[identity]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &rec, nil
}

func (s *mockCredentialStore) UpdateSecretHash(_ context.Context, accountRef, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[accountRef] = hash
	for id, rec := range s.records {
		if rec.AccountRef == accountRef {
			rec.SecretHash = hash
			s.records[id] = rec
		}
	}
	return nil
}

var errBackendDown = errors.New("connection refused")

func guardTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Timing.PadLockedOut = false
	cfg.Timing.CalibrationRounds = 1
	cfg.Audit.Enabled = false
	return cfg
}

func newTestHasher(t testing.TB) password.Hasher {
	t.Helper()
	h, err := newHasher(guardTestConfig().Password)
	if err != nil {
		t.Fatalf("newHasher: %v", err)
	}
	return h
}

func hashSecret(t testing.TB, h password.Hasher, secret string) string {
	t.Helper()
	hash, err := h.Hash(secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}

type guardFixture struct {
	guard *Guard
	store *mockCredentialStore
	clock *fakeClock
}

func newGuardFixture(t testing.TB, cfg Config, opts ...func(*Builder)) *guardFixture {
	t.Helper()

	store := newMockCredentialStore()
	hasher := newTestHasher(t)
	store.add("alice@example.com", hashSecret(t, hasher, "correct horse battery"), "acct-alice")
	store.add("bob@example.com", hashSecret(t, hasher, "bob-secret-123"), "acct-bob")

	clock := newFakeClock()
	b := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithHasher(hasher).
		WithClock(clock)
	for _, opt := range opts {
		opt(b)
	}

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(g.Close)

	return &guardFixture{guard: g, store: store, clock: clock}
}

func (f *guardFixture) login(t *testing.T, identity, secret string) Result {
	t.Helper()
	res, err := f.guard.Authenticate(context.Background(), identity, secret)
	if err != nil {
		t.Fatalf("Authenticate(%q): %v", identity, err)
	}
	return res
}
