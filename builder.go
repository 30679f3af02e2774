package loginguard

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/loginguard/internal/audit"
	"github.com/MrEthical07/loginguard/internal/lockout"
	"github.com/MrEthical07/loginguard/internal/timing"
	"github.com/MrEthical07/loginguard/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a Guard. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	hasher    password.Hasher
	clock     Clock
	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Build validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithCredentialStore sets the store credentials are read from. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithRedis switches the lockout backend from process memory to Redis, so
// every process sharing client sees the same counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHasher overrides the hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithClock sets the time source for lockout decisions and audit timestamps.
// The default is SystemClock.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger sets the guard's logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authenticate latency histogram. It has
// no effect while metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, precomputes the dummy hash, times
// Config.Timing.CalibrationRounds comparisons to seed the padding estimate,
// and returns a ready Guard.
func (b *Builder) Build() (*Guard, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = SystemClock{}
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	verifier, err := NewCredentialVerifier(b.store, hasher, logger)
	if err != nil {
		return nil, err
	}

	policy := lockout.Policy{
		Threshold:    cfg.Lockout.Threshold,
		Duration:     cfg.Lockout.Duration,
		IdleEviction: cfg.Lockout.IdleEviction,
	}
	var lockouts lockout.Store
	if b.redis != nil {
		lockouts = lockout.NewRedisStore(b.redis, policy, cfg.Lockout.RedisPrefix)
	} else {
		lockouts = lockout.NewMemoryStore(policy)
	}

	g := &Guard{
		cfg:      cfg,
		store:    b.store,
		verifier: verifier,
		hasher:   hasher,
		lockouts: lockouts,
		clock:    clock,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        clock.Now,
		}, b.auditSink),
		equalizer: newEqualizer(verifier, cfg.Timing),
	}

	logger.Info("login guard ready",
		zap.Int("lockout_threshold", cfg.Lockout.Threshold),
		zap.Duration("lockout_duration", cfg.Lockout.Duration),
		zap.Bool("shared_lockouts", b.redis != nil),
		zap.String("hash_scheme", hasher.Scheme()),
		zap.Duration("pad_target", g.equalizer.Target()),
	)

	b.built = true
	return g, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	primary, err := password.NewArgon2(cfg.argon2())
	if err != nil {
		return nil, err
	}
	if !cfg.AcceptBcrypt {
		return password.NewChain(primary), nil
	}

	legacy, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return password.NewChain(primary, legacy), nil
}

// newEqualizer seeds the padding estimate by calibration. Without an explicit
// Floor the calibrated duration becomes the floor, so observed comparisons
// can raise the target but never pull it below what the host measured.
func newEqualizer(v *CredentialVerifier, cfg TimingConfig) *timing.Equalizer {
	initial := calibrate(v, cfg.CalibrationRounds)
	floor := cfg.Floor
	if floor == 0 {
		floor = initial
	}
	if cfg.Ceiling > 0 && floor > cfg.Ceiling {
		floor = cfg.Ceiling
	}
	return timing.New(timing.Config{
		Initial: initial,
		Floor:   floor,
		Ceiling: cfg.Ceiling,
	})
}

// calibrate returns the mean duration of rounds dummy comparisons.
func calibrate(v *CredentialVerifier, rounds int) time.Duration {
	if rounds <= 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < rounds; i++ {
		start := time.Now()
		v.burn("calibration-secret")
		total += time.Since(start)
	}
	return total / time.Duration(rounds)
}
