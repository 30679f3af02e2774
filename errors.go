package loginguard

import (
	"errors"

	"github.com/MrEthical07/loginguard/internal/lockout"
)

var (
	// ErrInvalidCredentials is returned by Result.Err for a failed comparison.
	// It covers both an unknown identity and a wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned by Result.Err while the identity is locked out.
	ErrAccountLocked = errors.New("account locked")

	// ErrCredentialNotFound must be returned by a CredentialStore for an
	// identity it does not know.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrStoreUnavailable wraps any other credential store failure.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrLockoutUnavailable wraps lockout backend failures.
	ErrLockoutUnavailable = lockout.ErrUnavailable

	// ErrGuardNotReady is returned when a method is called on a nil Guard.
	ErrGuardNotReady = errors.New("guard not initialized")
	// ErrBuilderUsed is returned by a second call to Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
)
