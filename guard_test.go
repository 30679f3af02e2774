package loginguard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticateSuccess(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	res := f.login(t, "alice@example.com", "correct horse battery")
	if !res.Authenticated || res.AccountRef != "acct-alice" {
		t.Fatalf("expected authenticated alice, got %+v", res)
	}
	if res.Err() != nil {
		t.Fatalf("expected nil Err, got %v", res.Err())
	}
}

func TestAuthenticateUnknownAndWrongAreIndistinguishable(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	wrong := f.login(t, "alice@example.com", "not the secret")
	unknown := f.login(t, "nobody@example.com", "not the secret")

	if wrong.Reason != ReasonBadCredentials || unknown.Reason != ReasonBadCredentials {
		t.Fatalf("expected bad credentials for both, got %v and %v", wrong.Reason, unknown.Reason)
	}
	if !errors.Is(wrong.Err(), ErrInvalidCredentials) || !errors.Is(unknown.Err(), ErrInvalidCredentials) {
		t.Fatal("expected ErrInvalidCredentials for both")
	}
	if wrong.AccountRef != "" || unknown.AccountRef != "" {
		t.Fatal("rejections must not carry an account reference")
	}
}

func TestThresholdLocksEvenCorrectSecret(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())
	start := f.clock.Now()

	for i := 0; i < 5; i++ {
		f.clock.Set(start.Add(time.Duration(i) * time.Second))
		res := f.login(t, "alice@example.com", "wrong")
		if res.Reason != ReasonBadCredentials {
			t.Fatalf("attempt %d: expected bad credentials, got %v", i+1, res.Reason)
		}
	}

	f.clock.Set(start.Add(5 * time.Second))
	calls := f.store.findCalls.Load()
	res := f.login(t, "alice@example.com", "correct horse battery")
	if res.Reason != ReasonLockedOut {
		t.Fatalf("expected locked out, got %+v", res)
	}
	if !errors.Is(res.Err(), ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", res.Err())
	}
	if want := start.Add(4 * time.Second).Add(30 * time.Minute); !res.LockedUntil.Equal(want) {
		t.Fatalf("expected locked until %v, got %v", want, res.LockedUntil)
	}
	if f.store.findCalls.Load() != calls {
		t.Fatal("locked-out attempt must not reach the credential store")
	}

	f.clock.Set(start.Add(1800 * time.Second))
	res = f.login(t, "alice@example.com", "correct horse battery")
	if res.Reason != ReasonLockedOut {
		t.Fatalf("expected still locked 1796s after the last failure, got %+v", res)
	}

	f.clock.Set(start.Add(4*time.Second + 30*time.Minute))
	res = f.login(t, "alice@example.com", "correct horse battery")
	if !res.Authenticated {
		t.Fatalf("expected authenticated after lockout expiry, got %+v", res)
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	for i := 0; i < 4; i++ {
		f.login(t, "alice@example.com", "wrong")
	}
	if res := f.login(t, "alice@example.com", "correct horse battery"); !res.Authenticated {
		t.Fatalf("expected success before threshold, got %+v", res)
	}

	st, err := f.guard.Status(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != LockoutClear {
		t.Fatalf("expected clear after success, got %v", st.State)
	}

	f.login(t, "alice@example.com", "wrong")
	if res := f.login(t, "alice@example.com", "correct horse battery"); !res.Authenticated {
		t.Fatalf("one failure after a reset must not lock, got %+v", res)
	}
}

func TestExpiredLockoutReachesVerifier(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	for i := 0; i < 5; i++ {
		f.login(t, "bob@example.com", "wrong")
	}
	f.clock.Advance(30 * time.Minute)

	calls := f.store.findCalls.Load()
	res := f.login(t, "bob@example.com", "still wrong")
	if res.Reason != ReasonBadCredentials {
		t.Fatalf("expected fresh bad-credentials result, got %v", res.Reason)
	}
	if f.store.findCalls.Load() != calls+1 {
		t.Fatal("expected the verifier to run after expiry")
	}

	st, _ := f.guard.Status(context.Background(), "bob@example.com")
	if st.Failures != 1 || st.State != LockoutAccumulating {
		t.Fatalf("expected counter to restart at 1, got %+v", st)
	}
}

func TestStoreErrorDoesNotCountFailures(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())
	f.store.setFindErr(errBackendDown)

	for i := 0; i < 3; i++ {
		_, err := f.guard.Authenticate(context.Background(), "alice@example.com", "wrong")
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	}

	st, err := f.guard.Status(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Failures != 0 {
		t.Fatalf("expected zero failures after store errors, got %d", st.Failures)
	}
	if got := f.guard.MetricsSnapshot().Counters[MetricCredentialStoreError]; got != 3 {
		t.Fatalf("expected 3 store errors counted, got %d", got)
	}
}

func TestIdentityNormalization(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	for _, id := range []string{"Alice@Example.com", " alice@example.com", "ALICE@EXAMPLE.COM", "alice@example.com ", "alice@EXAMPLE.com"} {
		f.login(t, id, "wrong")
	}

	res := f.login(t, "alice@example.com", "correct horse battery")
	if res.Reason != ReasonLockedOut {
		t.Fatalf("expected case and whitespace variants to share a counter, got %+v", res)
	}
}

func TestEmptyIdentityRejectedWithoutEntry(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	res := f.login(t, "   ", "anything")
	if res.Reason != ReasonBadCredentials {
		t.Fatalf("expected bad credentials, got %v", res.Reason)
	}
	if f.store.findCalls.Load() != 0 {
		t.Fatal("empty identity must not be looked up")
	}
}

func TestUnlockClearsLockout(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	for i := 0; i < 5; i++ {
		f.login(t, "alice@example.com", "wrong")
	}
	if err := f.guard.Unlock(context.Background(), "ALICE@example.com"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if res := f.login(t, "alice@example.com", "correct horse battery"); !res.Authenticated {
		t.Fatalf("expected success after unlock, got %+v", res)
	}
	if got := f.guard.MetricsSnapshot().Counters[MetricLockoutCleared]; got != 1 {
		t.Fatalf("expected one unlock counted, got %d", got)
	}
}

func TestLockoutMetricsAndAudit(t *testing.T) {
	cfg := guardTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(32)
	f := newGuardFixture(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	for i := 0; i < 6; i++ {
		if _, err := f.guard.Authenticate(ctx, "bob@example.com", "wrong"); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
	}
	f.guard.Close()

	snap := f.guard.MetricsSnapshot()
	if snap.Counters[MetricLoginBadCredentials] != 5 {
		t.Fatalf("expected 5 bad credentials, got %d", snap.Counters[MetricLoginBadCredentials])
	}
	if snap.Counters[MetricLockoutTriggered] != 1 {
		t.Fatalf("expected 1 lockout trigger, got %d", snap.Counters[MetricLockoutTriggered])
	}
	if snap.Counters[MetricLoginLockedOut] != 1 {
		t.Fatalf("expected 1 locked-out rejection, got %d", snap.Counters[MetricLoginLockedOut])
	}

	counts := map[string]int{}
	for len(sink.Events()) > 0 {
		e := <-sink.Events()
		if e.IP != "203.0.113.7" {
			t.Fatalf("expected client IP on audit event, got %q", e.IP)
		}
		counts[e.EventType]++
	}
	if counts["login_failure"] != 5 || counts["lockout_triggered"] != 1 || counts["login_locked_out"] != 1 {
		t.Fatalf("unexpected audit events: %v", counts)
	}
}

func TestLegacyHashUpgradedOnLogin(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	f.store.add("carol@example.com", string(legacy), "acct-carol")

	if res := f.login(t, "carol@example.com", "legacy-secret"); !res.Authenticated {
		t.Fatalf("expected legacy hash to verify, got %+v", res)
	}

	f.store.mu.Lock()
	upgraded := f.store.updated["acct-carol"]
	f.store.mu.Unlock()
	if upgraded == "" || upgraded[:10] != "$argon2id$" {
		t.Fatalf("expected argon2id rehash, got %q", upgraded)
	}
	if res := f.login(t, "carol@example.com", "legacy-secret"); !res.Authenticated {
		t.Fatalf("expected upgraded hash to verify, got %+v", res)
	}
	if got := f.guard.MetricsSnapshot().Counters[MetricPasswordRehashed]; got != 1 {
		t.Fatalf("expected one rehash, got %d", got)
	}
}

func TestCommitSurvivesCancelledContext(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	// Cancellation after the lockout check must not skip recording.
	ctx, cancel := context.WithCancel(context.Background())
	store := &cancelOnFindStore{inner: f.store, cancel: cancel}
	f.guard.store = store
	f.guard.verifier.store = store

	res, err := f.guard.Authenticate(ctx, "alice@example.com", "wrong")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.Reason != ReasonBadCredentials {
		t.Fatalf("expected bad credentials, got %v", res.Reason)
	}

	st, _ := f.guard.Status(context.Background(), "alice@example.com")
	if st.Failures != 1 {
		t.Fatalf("expected failure recorded despite cancellation, got %d", st.Failures)
	}
}

type cancelOnFindStore struct {
	inner  CredentialStore
	cancel context.CancelFunc
}

func (s *cancelOnFindStore) FindByIdentity(ctx context.Context, identity string) (*CredentialRecord, error) {
	s.cancel()
	return s.inner.FindByIdentity(ctx, identity)
}

func TestRedisBackedGuardSharesState(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	withRedis := func(b *Builder) { b.WithRedis(rdb) }
	first := newGuardFixture(t, guardTestConfig(), withRedis)
	second := newGuardFixture(t, guardTestConfig(), withRedis)
	second.clock = first.clock
	second.guard.clock = first.clock

	for i := 0; i < 3; i++ {
		first.login(t, "alice@example.com", "wrong")
	}
	for i := 0; i < 2; i++ {
		second.login(t, "alice@example.com", "wrong")
	}

	if res := first.login(t, "alice@example.com", "correct horse battery"); res.Reason != ReasonLockedOut {
		t.Fatalf("expected failures from both guards to combine, got %+v", res)
	}
	if !mr.Exists("lg:lockout:alice@example.com") {
		t.Fatal("expected lockout hash under the default prefix")
	}
}

func TestLockoutBackendErrorSurfaces(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	f := newGuardFixture(t, guardTestConfig(), func(b *Builder) { b.WithRedis(rdb) })
	mr.Close()

	_, err := f.guard.Authenticate(context.Background(), "alice@example.com", "correct horse battery")
	if !errors.Is(err, ErrLockoutUnavailable) {
		t.Fatalf("expected ErrLockoutUnavailable, got %v", err)
	}
}

func TestLockedOutRejectionIsPadded(t *testing.T) {
	cfg := guardTestConfig()
	cfg.Timing.PadLockedOut = true
	f := newGuardFixture(t, cfg)

	for i := 0; i < 5; i++ {
		f.login(t, "alice@example.com", "wrong")
	}

	target := f.guard.PadTarget()
	if target <= 0 {
		t.Fatal("expected a positive pad target after calibration")
	}

	start := time.Now()
	res := f.login(t, "alice@example.com", "wrong")
	elapsed := time.Since(start)
	if res.Reason != ReasonLockedOut {
		t.Fatalf("expected locked out, got %v", res.Reason)
	}
	if elapsed < target*9/10 {
		t.Fatalf("expected rejection padded to about %v, took %v", target, elapsed)
	}
}

func TestOversizedSecretsDoNotLowerPadTarget(t *testing.T) {
	cfg := guardTestConfig()
	cfg.Timing.PadLockedOut = true
	f := newGuardFixture(t, cfg)

	before := f.guard.PadTarget()
	if before <= 0 {
		t.Fatal("expected a positive pad target after calibration")
	}
	for i := 0; i < 5; i++ {
		f.login(t, "alice@example.com", "wrong")
	}

	oversized := strings.Repeat("x", 2000)
	for i := 0; i < 64; i++ {
		res := f.login(t, fmt.Sprintf("ghost%d@example.com", i), oversized)
		if res.Reason != ReasonBadCredentials {
			t.Fatalf("expected bad credentials for oversized secret, got %v", res.Reason)
		}
	}

	after := f.guard.PadTarget()
	if after < before {
		t.Fatalf("pad target dropped from %v to %v", before, after)
	}

	start := time.Now()
	res := f.login(t, "alice@example.com", "wrong")
	elapsed := time.Since(start)
	if res.Reason != ReasonLockedOut {
		t.Fatalf("expected locked out, got %v", res.Reason)
	}
	if elapsed < before*9/10 {
		t.Fatalf("locked-out reply took %v, expected about %v", elapsed, before)
	}
}

func TestPadTargetFloorsAtCalibration(t *testing.T) {
	f := newGuardFixture(t, guardTestConfig())

	calibrated := f.guard.PadTarget()
	for i := 0; i < 200; i++ {
		f.guard.equalizer.Observe(time.Microsecond)
	}
	if got := f.guard.PadTarget(); got < calibrated {
		t.Fatalf("expected target to stay at or above %v, got %v", calibrated, got)
	}
}

func TestExplicitFloorIsKept(t *testing.T) {
	cfg := guardTestConfig()
	cfg.Timing.CalibrationRounds = 0
	cfg.Timing.Floor = 40 * time.Millisecond
	f := newGuardFixture(t, cfg)

	f.guard.equalizer.Observe(time.Microsecond)
	if got := f.guard.PadTarget(); got != 40*time.Millisecond {
		t.Fatalf("expected floor 40ms, got %v", got)
	}
}

func TestNilGuard(t *testing.T) {
	var g *Guard
	if _, err := g.Authenticate(context.Background(), "a", "b"); !errors.Is(err, ErrGuardNotReady) {
		t.Fatalf("expected ErrGuardNotReady, got %v", err)
	}
	if err := g.Unlock(context.Background(), "a"); !errors.Is(err, ErrGuardNotReady) {
		t.Fatalf("expected ErrGuardNotReady, got %v", err)
	}
}
