// Package config loads the login service settings from the environment and an
// optional .env file.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/loginguard"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendMiniredis  = "miniredis"
	EnvDevelopment    = "development"
	EnvProduction     = "production"
	minJWTSecretBytes = 32
)

// Config holds all configuration for the login service.
type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	Environment     string        `mapstructure:"ENVIRONMENT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	CredentialStore string `mapstructure:"CREDENTIAL_STORE"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	SQLitePath      string `mapstructure:"SQLITE_PATH"`

	LockoutBackend       string        `mapstructure:"LOCKOUT_BACKEND"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	LockoutThreshold     int           `mapstructure:"LOCKOUT_THRESHOLD"`
	LockoutDuration      time.Duration `mapstructure:"LOCKOUT_DURATION"`
	LockoutIdleEviction  time.Duration `mapstructure:"LOCKOUT_IDLE_EVICTION"`
	LockoutSweepInterval time.Duration `mapstructure:"LOCKOUT_SWEEP_INTERVAL"`
	LockoutRedisPrefix   string        `mapstructure:"LOCKOUT_REDIS_PREFIX"`
	RevealLockout        bool          `mapstructure:"REVEAL_LOCKOUT"`

	LoginIPMaxAttempts int           `mapstructure:"LOGIN_IP_MAX_ATTEMPTS"`
	LoginIPWindow      time.Duration `mapstructure:"LOGIN_IP_WINDOW"`

	PasswordAcceptBcrypt   bool   `mapstructure:"PASSWORD_ACCEPT_BCRYPT"`
	PasswordUpgradeOnLogin bool   `mapstructure:"PASSWORD_UPGRADE_ON_LOGIN"`
	Argon2MemoryKB         uint32 `mapstructure:"ARGON2_MEMORY_KB"`
	Argon2Time             uint32 `mapstructure:"ARGON2_TIME"`
	Argon2Parallelism      uint8  `mapstructure:"ARGON2_PARALLELISM"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTTTL      time.Duration `mapstructure:"JWT_TTL"`
	JWTIssuer   string        `mapstructure:"JWT_ISSUER"`
	JWTAudience string        `mapstructure:"JWT_AUDIENCE"`

	AdminAPIKey        string `mapstructure:"ADMIN_API_KEY"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	AuditEnabled       bool   `mapstructure:"AUDIT_ENABLED"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`

	SeedIdentity string `mapstructure:"SEED_IDENTITY"`
	SeedName     string `mapstructure:"SEED_NAME"`
	SeedPassword string `mapstructure:"SEED_PASSWORD"`

	// EphemeralJWTKey is set when a development run had no JWT_SECRET and a
	// random key was generated.
	EphemeralJWTKey bool `mapstructure:"-"`
}

var keys = []string{
	"SERVER_PORT", "ENVIRONMENT", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
	"CREDENTIAL_STORE", "DATABASE_URL", "SQLITE_PATH",
	"LOCKOUT_BACKEND", "REDIS_URL", "LOCKOUT_THRESHOLD", "LOCKOUT_DURATION",
	"LOCKOUT_IDLE_EVICTION", "LOCKOUT_SWEEP_INTERVAL", "LOCKOUT_REDIS_PREFIX", "REVEAL_LOCKOUT",
	"LOGIN_IP_MAX_ATTEMPTS", "LOGIN_IP_WINDOW",
	"PASSWORD_ACCEPT_BCRYPT", "PASSWORD_UPGRADE_ON_LOGIN",
	"ARGON2_MEMORY_KB", "ARGON2_TIME", "ARGON2_PARALLELISM",
	"JWT_SECRET", "JWT_TTL", "JWT_ISSUER", "JWT_AUDIENCE",
	"ADMIN_API_KEY", "CORS_ALLOWED_ORIGINS", "AUDIT_ENABLED", "TRUST_PROXY",
	"SEED_IDENTITY", "SEED_NAME", "SEED_PASSWORD",
}

// LoadConfig reads a .env file when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	defaults := loginguard.DefaultConfig()
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", EnvDevelopment)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	viper.SetDefault("CREDENTIAL_STORE", StoreMemory)
	viper.SetDefault("SQLITE_PATH", "loginguard.db")
	viper.SetDefault("LOCKOUT_BACKEND", BackendMemory)
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("LOCKOUT_THRESHOLD", defaults.Lockout.Threshold)
	viper.SetDefault("LOCKOUT_DURATION", defaults.Lockout.Duration.String())
	viper.SetDefault("LOCKOUT_IDLE_EVICTION", "0s")
	viper.SetDefault("LOCKOUT_SWEEP_INTERVAL", "1m")
	viper.SetDefault("LOCKOUT_REDIS_PREFIX", defaults.Lockout.RedisPrefix)
	viper.SetDefault("REVEAL_LOCKOUT", false)
	viper.SetDefault("LOGIN_IP_MAX_ATTEMPTS", 0)
	viper.SetDefault("LOGIN_IP_WINDOW", "1m")
	viper.SetDefault("PASSWORD_ACCEPT_BCRYPT", defaults.Password.AcceptBcrypt)
	viper.SetDefault("PASSWORD_UPGRADE_ON_LOGIN", defaults.Password.UpgradeOnLogin)
	viper.SetDefault("ARGON2_MEMORY_KB", defaults.Password.Memory)
	viper.SetDefault("ARGON2_TIME", defaults.Password.Time)
	viper.SetDefault("ARGON2_PARALLELISM", defaults.Password.Parallelism)
	viper.SetDefault("JWT_TTL", "15m")
	viper.SetDefault("JWT_ISSUER", "loginguard")
	viper.SetDefault("AUDIT_ENABLED", false)
	viper.SetDefault("TRUST_PROXY", false)
	viper.AutomaticEnv()

	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.CredentialStore = strings.ToLower(strings.TrimSpace(cfg.CredentialStore))
	cfg.LockoutBackend = strings.ToLower(strings.TrimSpace(cfg.LockoutBackend))

	if cfg.JWTSecret == "" && cfg.Environment == EnvDevelopment {
		secret := make([]byte, minJWTSecretBytes)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate development JWT key: %w", err)
		}
		cfg.JWTSecret = string(secret)
		cfg.EphemeralJWTKey = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that do not belong to the guard itself.
func (c *Config) Validate() error {
	switch c.CredentialStore {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when CREDENTIAL_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported CREDENTIAL_STORE %q", c.CredentialStore)
	}

	switch c.LockoutBackend {
	case BackendMemory, BackendMiniredis:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when LOCKOUT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported LOCKOUT_BACKEND %q", c.LockoutBackend)
	}

	if c.LoginIPMaxAttempts < 0 {
		return errors.New("LOGIN_IP_MAX_ATTEMPTS must be >= 0")
	}
	if c.LoginIPMaxAttempts > 0 {
		if c.LockoutBackend == BackendMemory {
			return errors.New("LOGIN_IP_MAX_ATTEMPTS requires LOCKOUT_BACKEND=redis or miniredis")
		}
		if c.LoginIPWindow <= 0 {
			return errors.New("LOGIN_IP_WINDOW must be > 0")
		}
	}
	if c.LockoutIdleEviction > 0 && c.LockoutSweepInterval <= 0 {
		return errors.New("LOCKOUT_SWEEP_INTERVAL must be > 0 when LOCKOUT_IDLE_EVICTION is set")
	}

	if len(c.JWTSecret) < minJWTSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretBytes)
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be > 0")
	}
	if (c.SeedIdentity == "") != (c.SeedPassword == "") {
		return errors.New("SEED_IDENTITY and SEED_PASSWORD must be set together")
	}

	g := c.Guard()
	return g.Validate()
}

// Guard maps the service settings onto the guard configuration.
func (c *Config) Guard() loginguard.Config {
	g := loginguard.DefaultConfig()
	g.Lockout.Threshold = c.LockoutThreshold
	g.Lockout.Duration = c.LockoutDuration
	g.Lockout.IdleEviction = c.LockoutIdleEviction
	if c.LockoutRedisPrefix != "" {
		g.Lockout.RedisPrefix = c.LockoutRedisPrefix
	}
	g.Password.AcceptBcrypt = c.PasswordAcceptBcrypt
	g.Password.UpgradeOnLogin = c.PasswordUpgradeOnLogin
	if c.Argon2MemoryKB > 0 {
		g.Password.Memory = c.Argon2MemoryKB
	}
	if c.Argon2Time > 0 {
		g.Password.Time = c.Argon2Time
	}
	if c.Argon2Parallelism > 0 {
		g.Password.Parallelism = c.Argon2Parallelism
	}
	g.Audit.Enabled = c.AuditEnabled
	return g
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
