// Command loginguard-server serves the login endpoint behind the lockout guard.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/internal/config"
	"github.com/MrEthical07/loginguard/internal/logging"
	"github.com/MrEthical07/loginguard/internal/rate"
	"github.com/MrEthical07/loginguard/internal/server"
	"github.com/MrEthical07/loginguard/jwt"
	"github.com/MrEthical07/loginguard/metrics/export/prometheus"
	"github.com/MrEthical07/loginguard/store"
	"github.com/MrEthical07/loginguard/store/memory"
	"github.com/MrEthical07/loginguard/store/postgres"
	"github.com/MrEthical07/loginguard/store/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "loginguard-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("cannot build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.EphemeralJWTKey {
		logger.Warn("JWT_SECRET not set; using a random key, tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, closeStore, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("credential store ready", zap.String("store", cfg.CredentialStore))

	rdb, closeRedis, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	builder := loginguard.New().
		WithConfig(cfg.Guard()).
		WithCredentialStore(creds).
		WithLogger(logger.Named("guard"))
	if cfg.AuditEnabled {
		builder.WithAuditSink(logging.NewAuditSink(logger))
	}
	if rdb != nil {
		builder.WithRedis(rdb)
	}
	guard, err := builder.Build()
	if err != nil {
		return fmt.Errorf("cannot build guard: %w", err)
	}
	defer guard.Close()

	if cfg.SeedIdentity != "" {
		ref, err := store.Seed(ctx, creds, guard.Hasher(), cfg.SeedIdentity, cfg.SeedName, cfg.SeedPassword)
		if err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
		logger.Info("seed account ready", zap.String("account_ref", ref))
	}

	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWTTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(cfg.JWTSecret),
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		Leeway:        30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("cannot build token manager: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.LoginIPMaxAttempts > 0 {
		limiter, err = rate.New(rdb, rate.Config{
			MaxAttempts: cfg.LoginIPMaxAttempts,
			Window:      cfg.LoginIPWindow,
		})
		if err != nil {
			return fmt.Errorf("cannot build login throttle: %w", err)
		}
	}

	router := server.NewRouter(server.Deps{
		Guard:   guard,
		Tokens:  tokens,
		Limiter: limiter,
		Metrics: prometheus.NewPrometheusExporter(guard).Handler(),
		Logger:  logger,
	}, server.Options{
		RevealLockout:  cfg.RevealLockout,
		TrustProxy:     cfg.TrustProxy,
		AdminAPIKey:    cfg.AdminAPIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.LockoutIdleEviction > 0 {
		g.Go(func() error {
			sweepLoop(gctx, guard, cfg.LockoutSweepInterval, logger)
			return nil
		})
	}

	return g.Wait()
}

func sweepLoop(ctx context.Context, guard *loginguard.Guard, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := guard.Sweep(ctx)
			if err != nil {
				logger.Warn("lockout sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("lockout sweep", zap.Int("evicted", n))
			}
		}
	}
}

func openCredentialStore(ctx context.Context, cfg *config.Config) (store.Backend, func(), error) {
	switch cfg.CredentialStore {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s := postgres.New(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func openRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	switch cfg.LockoutBackend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	case config.BackendMiniredis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		logger.Info("using miniredis", zap.String("addr", mr.Addr()))
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	default:
		return nil, func() {}, nil
	}
}
