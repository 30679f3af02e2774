package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces throttle counters.
const DefaultKeyPrefix = "lg:ip:"

// Config holds throttle tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	KeyPrefix   string
}

// Decision is the outcome of a throttle check.
type Decision struct {
	Allowed    bool
	Attempts   int64
	RetryAfter time.Duration
}

// Limiter counts login attempts per client IP in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate: redis client is nil")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("rate: MaxAttempts must be >= 1")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("rate: Window must be > 0")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Limiter{redis: redisClient, config: cfg}, nil
}

// Allow records one attempt for ip and reports whether it fits in the
// current window. A refused attempt returns ErrRateLimited alongside the
// decision so callers can set Retry-After.
func (l *Limiter) Allow(ctx context.Context, ip string) (Decision, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Decision{Allowed: true}, nil
	}

	key := l.key(ip)
	count, err := l.incrementWithTTL(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	if count <= int64(l.config.MaxAttempts) {
		return Decision{Allowed: true, Attempts: count}, nil
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = l.config.Window
	}
	return Decision{Attempts: count, RetryAfter: ttl}, ErrRateLimited
}

// Attempts returns the counter for ip in the current window.
func (l *Limiter) Attempts(ctx context.Context, ip string) (int64, error) {
	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Reset clears the counter for ip.
func (l *Limiter) Reset(ctx context.Context, ip string) error {
	if err := l.redis.Del(ctx, l.key(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(ip string) string {
	return l.config.KeyPrefix + strings.TrimSpace(ip)
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.PExpire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
