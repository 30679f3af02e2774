package loginguard

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/loginguard/internal/audit"
	"github.com/MrEthical07/loginguard/internal/lockout"
)

// CredentialRecord is the stored credential for one identity. The guard only
// reads it.
type CredentialRecord struct {
	Identity string
	// Name is an optional display name returned to the caller on success.
	Name       string
	SecretHash string
	AccountRef string
}

// CredentialStore looks up credentials by identity. Implementations return
// ErrCredentialNotFound (possibly wrapped) for unknown identities; every other
// error is treated as an infrastructure failure.
type CredentialStore interface {
	FindByIdentity(ctx context.Context, identity string) (*CredentialRecord, error)
}

// CredentialUpdater is optionally implemented by a CredentialStore that
// accepts re-hashed secrets after a successful login.
type CredentialUpdater interface {
	UpdateSecretHash(ctx context.Context, accountRef, secretHash string) error
}

// Clock supplies the current time for lockout decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// RejectReason says why Authenticate did not authenticate.
type RejectReason uint8

const (
	// ReasonNone means the attempt was authenticated.
	ReasonNone RejectReason = iota
	// ReasonBadCredentials covers an unknown identity and a wrong secret alike.
	ReasonBadCredentials
	// ReasonLockedOut means the identity was locked out; the secret was not
	// compared, or a concurrent attempt locked it during the comparison.
	ReasonLockedOut
)

// String returns the snake_case name used in logs and audit events.
func (r RejectReason) String() string {
	switch r {
	case ReasonBadCredentials:
		return "bad_credentials"
	case ReasonLockedOut:
		return "locked_out"
	default:
		return "none"
	}
}

// Result is the outcome of one Authenticate call.
type Result struct {
	Authenticated bool
	// Identity is the stored form of the identity when Authenticated, and the
	// submitted one (trimmed) otherwise.
	Identity   string
	Name       string
	AccountRef string
	Reason     RejectReason
	// LockedUntil is set when Reason is ReasonLockedOut.
	LockedUntil time.Time
}

// Err maps a rejection to ErrInvalidCredentials or ErrAccountLocked, and
// returns nil for an authenticated result.
func (r Result) Err() error {
	switch r.Reason {
	case ReasonBadCredentials:
		return ErrInvalidCredentials
	case ReasonLockedOut:
		return ErrAccountLocked
	default:
		return nil
	}
}

// LockoutStatus is the lockout view of a single identity.
type LockoutStatus = lockout.Status

// LockoutState enumerates Clear, Accumulating and LockedOut.
type LockoutState = lockout.State

const (
	// LockoutClear is an identity with no recorded failures.
	LockoutClear = lockout.StateClear
	// LockoutAccumulating is an identity below the failure threshold.
	LockoutAccumulating = lockout.StateAccumulating
	// LockoutLockedOut is an identity whose lockout has not yet expired.
	LockoutLockedOut = lockout.StateLockedOut
)

// AuditEvent is one login outcome delivered to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the guard's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// Audit event types, found in AuditEvent.EventType.
const (
	// AuditLoginSuccess is an authenticated attempt.
	AuditLoginSuccess = internalaudit.EventLoginSuccess
	// AuditLoginFailure is a wrong secret or unknown identity.
	AuditLoginFailure = internalaudit.EventLoginFailure
	// AuditLoginLockedOut is an attempt rejected by an active lockout.
	AuditLoginLockedOut = internalaudit.EventLoginLockedOut
	// AuditLockoutTriggered is the failure that reached the threshold.
	AuditLockoutTriggered = internalaudit.EventLockoutTriggered
	// AuditLockoutCleared is an administrative unlock.
	AuditLockoutCleared = internalaudit.EventLockoutCleared
	// AuditBackendError is a credential store or lockout backend failure.
	AuditBackendError = internalaudit.EventBackendError
)
