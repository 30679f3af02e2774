package lockout

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the lockout backend could not be reached.
var ErrUnavailable = errors.New("lockout backend unavailable")

// Policy holds the thresholds shared by every backend.
type Policy struct {
	// Threshold is the failure count at which a key becomes locked out.
	Threshold int
	// Duration is how long a lockout lasts after the most recent failure.
	Duration time.Duration
	// IdleEviction, when positive, drops entries whose last failure is older
	// than max(IdleEviction, Duration). Zero keeps accumulating entries until
	// a success or an unlock clears them.
	IdleEviction time.Duration
}

// State is the lockout state of a single key.
type State int

const (
	StateClear State = iota
	StateAccumulating
	StateLockedOut
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateLockedOut:
		return "locked_out"
	default:
		return "clear"
	}
}

// Entry is the persisted per-key record.
type Entry struct {
	Failures      int
	LastFailureAt time.Time
}

// Status is a point-in-time view of a key.
type Status struct {
	State         State
	Failures      int
	LastFailureAt time.Time
	// LockedUntil is set only in StateLockedOut.
	LockedUntil time.Time
}

// Locked reports whether s is StateLockedOut.
func (s Status) Locked() bool { return s.State == StateLockedOut }

// Store is implemented by lockout backends. Every method is atomic per key.
type Store interface {
	// Check returns the status of key at now, clearing an expired lockout.
	Check(ctx context.Context, key string, now time.Time) (Status, error)
	// RecordFailure adds one failure and refreshes LastFailureAt to now.
	RecordFailure(ctx context.Context, key string, now time.Time) (Status, error)
	// RecordSuccess clears key unless it is locked out at now, in which case
	// the entry is kept and the locked status is returned.
	RecordSuccess(ctx context.Context, key string, now time.Time) (Status, error)
	// Reset removes key unconditionally.
	Reset(ctx context.Context, key string) error
	// Sweep evicts expired and idle entries and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

func (p Policy) status(e Entry) Status {
	switch {
	case e.Failures <= 0:
		return Status{State: StateClear}
	case e.Failures >= p.Threshold:
		return Status{
			State:         StateLockedOut,
			Failures:      e.Failures,
			LastFailureAt: e.LastFailureAt,
			LockedUntil:   e.LastFailureAt.Add(p.Duration),
		}
	default:
		return Status{
			State:         StateAccumulating,
			Failures:      e.Failures,
			LastFailureAt: e.LastFailureAt,
		}
	}
}

// expired reports whether e is a lockout whose duration has elapsed.
func (p Policy) expired(e Entry, now time.Time) bool {
	return e.Failures >= p.Threshold && !now.Before(e.LastFailureAt.Add(p.Duration))
}

// idle reports whether e has been untouched for longer than the eviction window.
func (p Policy) idle(e Entry, now time.Time) bool {
	if p.IdleEviction <= 0 {
		return false
	}
	return now.Sub(e.LastFailureAt) >= p.retention()
}

// stale entries are treated as absent by every operation.
func (p Policy) stale(e Entry, now time.Time) bool {
	return p.expired(e, now) || p.idle(e, now)
}

func (p Policy) retention() time.Duration {
	if p.IdleEviction > p.Duration {
		return p.IdleEviction
	}
	return p.Duration
}
