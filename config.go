package loginguard

import (
	"errors"
	"time"

	"github.com/MrEthical07/loginguard/password"
)

// Config holds every tunable of a Guard. Build it from DefaultConfig and
// treat it as immutable once passed to Builder.WithConfig.
type Config struct {
	Lockout  LockoutConfig
	Password PasswordConfig
	Timing   TimingConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failure counting.
type LockoutConfig struct {
	// Threshold is the number of consecutive failures that locks an identity.
	Threshold int
	// Duration is measured from the most recent failure.
	Duration time.Duration
	// IdleEviction drops entries untouched for max(IdleEviction, Duration).
	// Zero keeps them until a success or an unlock.
	IdleEviction time.Duration
	// CommitTimeout bounds the recording of an outcome once the secret has
	// been compared. Recording ignores cancellation of the request context.
	CommitTimeout time.Duration
	// RedisPrefix namespaces lockout keys when the Redis backend is used.
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing scheme for comparisons and upgrades.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int

	// AcceptBcrypt allows verifying legacy bcrypt hashes.
	AcceptBcrypt bool
	BcryptCost   int
	// UpgradeOnLogin re-hashes weaker or legacy hashes after a successful
	// login when the store implements CredentialUpdater.
	UpgradeOnLogin bool
}

/*
====================================
TIMING CONFIG
====================================
*/

// TimingConfig controls latency padding of lockout rejections.
type TimingConfig struct {
	// PadLockedOut makes lockout rejections last about as long as a real
	// comparison.
	PadLockedOut bool
	// CalibrationRounds dummy comparisons are timed at build to seed the
	// estimate.
	CalibrationRounds int
	// Floor is the least a padded rejection takes. Zero uses the calibrated
	// duration.
	Floor   time.Duration
	Ceiling time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters read by the exporters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a five-failure, thirty-minute lockout with Argon2id
// hashing and padded lockout rejections.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Lockout: LockoutConfig{
			Threshold:     5,
			Duration:      30 * time.Minute,
			IdleEviction:  0,
			CommitTimeout: 2 * time.Second,
			RedisPrefix:   "lg:lockout:",
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			AcceptBcrypt:     true,
			UpgradeOnLogin:   true,
		},
		Timing: TimingConfig{
			PadLockedOut:      true,
			CalibrationRounds: 2,
			Ceiling:           2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func (p PasswordConfig) argon2() password.Config {
	return password.Config{
		Memory:           p.Memory,
		Time:             p.Time,
		Parallelism:      p.Parallelism,
		SaltLength:       p.SaltLength,
		KeyLength:        p.KeyLength,
		MaxPasswordBytes: p.MaxPasswordBytes,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. Hash parameters are checked by
// the password package when the guard is built.
func (c *Config) Validate() error {
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}
	if c.Lockout.IdleEviction < 0 {
		return errors.New("Lockout IdleEviction must be >= 0")
	}
	if c.Lockout.CommitTimeout <= 0 {
		return errors.New("Lockout CommitTimeout must be > 0")
	}

	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	if c.Timing.CalibrationRounds < 0 {
		return errors.New("Timing CalibrationRounds must be >= 0")
	}
	if c.Timing.Floor < 0 || c.Timing.Ceiling < 0 {
		return errors.New("Timing Floor and Ceiling must be >= 0")
	}
	if c.Timing.Ceiling > 0 && c.Timing.Floor > c.Timing.Ceiling {
		return errors.New("Timing Floor must not exceed Ceiling")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
