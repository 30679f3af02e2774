package loginguard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/loginguard/internal/audit"
	"github.com/MrEthical07/loginguard/internal/lockout"
	"github.com/MrEthical07/loginguard/internal/timing"
	"github.com/MrEthical07/loginguard/password"
	"go.uber.org/zap"
)

// Guard authenticates login attempts and locks identities out after repeated
// failures. Construct it with Builder; methods are safe for concurrent use.
type Guard struct {
	cfg       Config
	store     CredentialStore
	verifier  *CredentialVerifier
	hasher    password.Hasher
	lockouts  lockout.Store
	clock     Clock
	equalizer *timing.Equalizer
	logger    *zap.Logger
	metrics   *Metrics
	audit     *internalaudit.Dispatcher
}

// NormalizeIdentity returns the lockout key for identity: surrounding
// whitespace removed and lower-cased.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Authenticate runs the lockout check, the credential comparison and the
// outcome recording for one attempt.
//
// A rejection is reported through Result.Reason with a nil error. The error
// is non-nil only when the credential store or the lockout backend failed,
// in which case no failure is counted.
func (g *Guard) Authenticate(ctx context.Context, identity, secret string) (Result, error) {
	if g == nil {
		return Result{}, ErrGuardNotReady
	}

	start := time.Now()
	defer func() { g.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()

	identity = strings.TrimSpace(identity)
	key := NormalizeIdentity(identity)
	if key == "" {
		g.verifier.burn(secret)
		g.metrics.Inc(MetricLoginBadCredentials)
		return Result{Reason: ReasonBadCredentials}, nil
	}

	st, err := g.lockouts.Check(ctx, key, g.clock.Now())
	if err != nil {
		return Result{}, g.lockoutFailure(ctx, identity, err)
	}
	if st.Locked() {
		if g.cfg.Timing.PadLockedOut {
			_ = g.equalizer.Pad(ctx, start)
		}
		return g.lockedOut(ctx, identity, st), nil
	}

	verifyStart := time.Now()
	v, err := g.verifier.Verify(ctx, identity, secret)
	if err != nil {
		g.metrics.Inc(MetricCredentialStoreError)
		g.logger.Error("credential lookup failed", zap.Error(err))
		g.emitAudit(ctx, AuditEvent{
			EventType: internalaudit.EventBackendError,
			Identity:  identity,
			Error:     "credential_store",
		})
		return Result{}, err
	}
	if v.Compared {
		g.equalizer.Observe(time.Since(verifyStart))
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Lockout.CommitTimeout)
	defer cancel()

	if v.Matched {
		return g.recordSuccess(commitCtx, identity, key, secret, v)
	}
	return g.recordFailure(commitCtx, identity, key)
}

func (g *Guard) recordSuccess(ctx context.Context, identity, key, secret string, v Verification) (Result, error) {
	st, err := g.lockouts.RecordSuccess(ctx, key, g.clock.Now())
	if err != nil {
		return Result{}, g.lockoutFailure(ctx, identity, err)
	}
	// Another attempt locked the identity while this one was comparing.
	if st.Locked() {
		return g.lockedOut(ctx, identity, st), nil
	}

	if v.NeedsRehash && g.cfg.Password.UpgradeOnLogin {
		g.upgradeHash(ctx, v.AccountRef, secret)
	}

	g.metrics.Inc(MetricLoginSuccess)
	g.logger.Debug("login succeeded", zap.String("identity", identity))
	g.emitAudit(ctx, AuditEvent{
		EventType:  internalaudit.EventLoginSuccess,
		Identity:   identity,
		AccountRef: v.AccountRef,
		Success:    true,
	})

	res := Result{
		Authenticated: true,
		Identity:      v.Identity,
		Name:          v.Name,
		AccountRef:    v.AccountRef,
	}
	if res.Identity == "" {
		res.Identity = identity
	}
	return res, nil
}

func (g *Guard) recordFailure(ctx context.Context, identity, key string) (Result, error) {
	st, err := g.lockouts.RecordFailure(ctx, key, g.clock.Now())
	if err != nil {
		return Result{}, g.lockoutFailure(ctx, identity, err)
	}

	g.metrics.Inc(MetricLoginBadCredentials)
	g.emitAudit(ctx, AuditEvent{
		EventType: internalaudit.EventLoginFailure,
		Identity:  identity,
		Failures:  st.Failures,
	})

	if st.Failures == g.cfg.Lockout.Threshold {
		g.metrics.Inc(MetricLockoutTriggered)
		g.logger.Warn("identity locked out",
			zap.Int("failures", st.Failures),
			zap.Time("locked_until", st.LockedUntil),
		)
		g.emitAudit(ctx, AuditEvent{
			EventType: internalaudit.EventLockoutTriggered,
			Identity:  identity,
			Failures:  st.Failures,
		})
	}

	return Result{Identity: identity, Reason: ReasonBadCredentials}, nil
}

func (g *Guard) lockedOut(ctx context.Context, identity string, st LockoutStatus) Result {
	g.metrics.Inc(MetricLoginLockedOut)
	g.logger.Debug("login rejected while locked out",
		zap.String("identity", identity),
		zap.Time("locked_until", st.LockedUntil),
	)
	g.emitAudit(ctx, AuditEvent{
		EventType: internalaudit.EventLoginLockedOut,
		Identity:  identity,
		Failures:  st.Failures,
	})
	return Result{
		Identity:    identity,
		Reason:      ReasonLockedOut,
		LockedUntil: st.LockedUntil,
	}
}

func (g *Guard) lockoutFailure(ctx context.Context, identity string, err error) error {
	g.metrics.Inc(MetricLockoutBackendError)
	g.logger.Error("lockout backend failed", zap.Error(err))
	g.emitAudit(ctx, AuditEvent{
		EventType: internalaudit.EventBackendError,
		Identity:  identity,
		Error:     "lockout_backend",
	})
	if errors.Is(err, ErrLockoutUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
}

func (g *Guard) upgradeHash(ctx context.Context, accountRef, secret string) {
	updater, ok := g.store.(CredentialUpdater)
	if !ok {
		return
	}

	hash, err := g.hasher.Hash(secret)
	if err != nil {
		g.logger.Warn("password rehash failed", zap.String("account_ref", accountRef), zap.Error(err))
		return
	}
	if err := updater.UpdateSecretHash(ctx, accountRef, hash); err != nil {
		g.logger.Warn("password rehash not stored", zap.String("account_ref", accountRef), zap.Error(err))
		return
	}
	g.metrics.Inc(MetricPasswordRehashed)
}

// Unlock clears every recorded failure for identity.
func (g *Guard) Unlock(ctx context.Context, identity string) error {
	if g == nil {
		return ErrGuardNotReady
	}
	key := NormalizeIdentity(identity)
	if key == "" {
		return nil
	}

	if err := g.lockouts.Reset(ctx, key); err != nil {
		return g.lockoutFailure(ctx, identity, err)
	}

	g.metrics.Inc(MetricLockoutCleared)
	g.emitAudit(ctx, AuditEvent{
		EventType: internalaudit.EventLockoutCleared,
		Identity:  strings.TrimSpace(identity),
		Success:   true,
	})
	return nil
}

// Status reports the lockout state of identity. It never consults the
// credential store, so it reveals nothing about whether the identity exists.
func (g *Guard) Status(ctx context.Context, identity string) (LockoutStatus, error) {
	if g == nil {
		return LockoutStatus{}, ErrGuardNotReady
	}
	key := NormalizeIdentity(identity)
	if key == "" {
		return LockoutStatus{}, nil
	}

	st, err := g.lockouts.Check(ctx, key, g.clock.Now())
	if err != nil {
		return LockoutStatus{}, g.lockoutFailure(ctx, identity, err)
	}
	return st, nil
}

// Sweep evicts expired lockouts and idle entries. It is a no-op for the Redis
// backend, which relies on key TTLs.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	if g == nil {
		return 0, ErrGuardNotReady
	}
	n, err := g.lockouts.Sweep(ctx, g.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	g.metrics.Add(MetricLockoutSwept, uint64(n))
	return n, nil
}

// MetricsSnapshot returns the current counters.
func (g *Guard) MetricsSnapshot() MetricsSnapshot {
	if g == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return g.metrics.Snapshot()
}

// AuditDropped reports audit events lost to backpressure.
func (g *Guard) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}

// PadTarget reports the current latency target for padded rejections.
func (g *Guard) PadTarget() time.Duration {
	if g == nil {
		return 0
	}
	return g.equalizer.Target()
}

// Hasher returns the hasher new credentials should be produced with.
func (g *Guard) Hasher() password.Hasher {
	if g == nil {
		return nil
	}
	return g.hasher
}

// Close flushes pending audit events.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.audit.Close()
}
