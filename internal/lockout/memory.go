package lockout

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
//
// The index mutex guards only the slot map; each key has its own slot mutex
// held for the duration of a transition.
type MemoryStore struct {
	policy Policy

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu      sync.Mutex
	refs    int
	present bool
	entry   Entry
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(p Policy) *MemoryStore {
	return &MemoryStore{
		policy: p,
		slots:  make(map[string]*slot),
	}
}

func (m *MemoryStore) acquire(key string) *slot {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	s.mu.Lock()
	return s
}

func (m *MemoryStore) release(key string, s *slot) {
	s.mu.Unlock()

	m.mu.Lock()
	s.refs--
	if s.refs == 0 && !s.present {
		delete(m.slots, key)
	}
	m.mu.Unlock()
}

// current returns the live entry, dropping it first if it is stale.
// Caller holds s.mu.
func (m *MemoryStore) current(s *slot, now time.Time) Entry {
	if s.present && m.policy.stale(s.entry, now) {
		s.present = false
		s.entry = Entry{}
	}
	return s.entry
}

func (m *MemoryStore) Check(_ context.Context, key string, now time.Time) (Status, error) {
	s := m.acquire(key)
	defer m.release(key, s)

	return m.policy.status(m.current(s, now)), nil
}

func (m *MemoryStore) RecordFailure(_ context.Context, key string, now time.Time) (Status, error) {
	s := m.acquire(key)
	defer m.release(key, s)

	e := m.current(s, now)
	e.Failures++
	e.LastFailureAt = now
	s.entry = e
	s.present = true

	return m.policy.status(e), nil
}

func (m *MemoryStore) RecordSuccess(_ context.Context, key string, now time.Time) (Status, error) {
	s := m.acquire(key)
	defer m.release(key, s)

	st := m.policy.status(m.current(s, now))
	if st.Locked() {
		return st, nil
	}
	s.present = false
	s.entry = Entry{}
	return Status{State: StateClear}, nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	s := m.acquire(key)
	defer m.release(key, s)

	s.present = false
	s.entry = Entry{}
	return nil
}

// Sweep drops stale entries that no goroutine currently holds.
func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.slots {
		if s.refs > 0 || !s.present {
			continue
		}
		if m.policy.stale(s.entry, now) {
			delete(m.slots, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many keys are tracked, including keys with an operation in
// flight.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
