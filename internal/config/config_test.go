package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.LockoutThreshold != 5 || cfg.LockoutDuration != 30*time.Minute {
		t.Fatalf("expected 5 failures / 30m, got %d / %v", cfg.LockoutThreshold, cfg.LockoutDuration)
	}
	if cfg.CredentialStore != StoreMemory || cfg.LockoutBackend != BackendMemory {
		t.Fatalf("unexpected backends %q / %q", cfg.CredentialStore, cfg.LockoutBackend)
	}
	if !cfg.EphemeralJWTKey || len(cfg.JWTSecret) != minJWTSecretBytes {
		t.Fatal("expected an ephemeral development JWT key")
	}
	if cfg.TrustProxy {
		t.Fatal("expected forwarding headers to be untrusted by default")
	}
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	resetViper(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", strings.Repeat("k", 40))
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("LOCKOUT_DURATION", "10m")
	t.Setenv("LOCKOUT_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("LOGIN_IP_MAX_ATTEMPTS", "20")
	t.Setenv("REVEAL_LOCKOUT", "true")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("SEED_IDENTITY", "ops@example.com")
	t.Setenv("SEED_NAME", "Ops")
	t.Setenv("SEED_PASSWORD", "ops-password")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LockoutBackend != BackendRedis {
		t.Fatalf("expected lowercased backend, got %q", cfg.LockoutBackend)
	}
	if !cfg.RevealLockout || cfg.LoginIPMaxAttempts != 20 || !cfg.TrustProxy {
		t.Fatalf("unexpected flags: reveal=%v ip=%d trust_proxy=%v", cfg.RevealLockout, cfg.LoginIPMaxAttempts, cfg.TrustProxy)
	}
	if cfg.SeedName != "Ops" {
		t.Fatalf("expected seed name, got %q", cfg.SeedName)
	}
	g := cfg.Guard()
	if g.Lockout.Threshold != 3 || g.Lockout.Duration != 10*time.Minute {
		t.Fatalf("unexpected guard lockout config: %+v", g.Lockout)
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", origins)
	}
	if cfg.EphemeralJWTKey {
		t.Fatal("expected configured JWT key to be used")
	}
}

func TestLoadConfig_ProductionRequiresJWTSecret(t *testing.T) {
	resetViper(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadConfig_RejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"CREDENTIAL_STORE": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"unknown store", map[string]string{"CREDENTIAL_STORE": "mongo"}, "CREDENTIAL_STORE"},
		{"unknown backend", map[string]string{"LOCKOUT_BACKEND": "etcd"}, "LOCKOUT_BACKEND"},
		{"ip throttle on memory", map[string]string{"LOGIN_IP_MAX_ATTEMPTS": "5"}, "LOGIN_IP_MAX_ATTEMPTS"},
		{"zero threshold", map[string]string{"LOCKOUT_THRESHOLD": "0"}, "Threshold"},
		{"half seeded", map[string]string{"SEED_IDENTITY": "dev@example.com", "SEED_PASSWORD": ""}, "SEED_"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetViper(t)
			t.Setenv("ENVIRONMENT", "development")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	resetViper(t)
	t.Setenv("ENVIRONMENT", "development")
	// godotenv writes the process environment; restore it afterwards.
	t.Setenv("LOCKOUT_THRESHOLD", "")
	_ = os.Unsetenv("LOCKOUT_THRESHOLD")
	if err := os.WriteFile(".env", []byte("LOCKOUT_THRESHOLD=7\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LockoutThreshold != 7 {
		t.Fatalf("expected threshold from .env, got %d", cfg.LockoutThreshold)
	}
}
