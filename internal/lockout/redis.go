package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces lockout hashes in a shared Redis.
const DefaultKeyPrefix = "lg:lockout:"

// Every script takes KEYS[1] = entry hash and
// ARGV = now_ms, threshold, duration_ms, retention_ms (0 = no TTL).
// Replies are {state, failures, last_failure_ms} with state 0 clear, 1 present.
const loadEntryLua = `
local v = redis.call('HMGET', KEYS[1], 'n', 't')
local n, t = 0, 0
if v[1] then n = tonumber(v[1]) end
if v[2] then t = tonumber(v[2]) end
local now = tonumber(ARGV[1])
if n > 0 and n >= tonumber(ARGV[2]) and now - t >= tonumber(ARGV[3]) then
  redis.call('DEL', KEYS[1])
  n, t = 0, 0
end
`

var (
	checkScript = redis.NewScript(loadEntryLua + `
if n == 0 then return {0, 0, 0} end
return {1, n, t}
`)

	failureScript = redis.NewScript(loadEntryLua + `
n = n + 1
redis.call('HSET', KEYS[1], 'n', n, 't', ARGV[1])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return {1, n, now}
`)

	successScript = redis.NewScript(loadEntryLua + `
if n >= tonumber(ARGV[2]) then return {1, n, t} end
redis.call('DEL', KEYS[1])
return {0, 0, 0}
`)
)

// RedisStore keeps entries in Redis hashes so several processes share one
// view of every identity.
//
// Times are taken from the caller (the guard's clock), stored with millisecond
// precision. When IdleEviction is set, each failure refreshes a PEXPIRE of
// max(IdleEviction, Duration) on the hash.
type RedisStore struct {
	redis  redis.UniversalClient
	policy Policy
	prefix string
}

// NewRedisStore returns a store using client. An empty prefix selects
// DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, p Policy, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{redis: client, policy: p, prefix: prefix}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) run(ctx context.Context, script *redis.Script, key string, now time.Time) (Status, error) {
	ttl := int64(0)
	if r.policy.IdleEviction > 0 {
		ttl = r.policy.retention().Milliseconds()
	}

	reply, err := script.Run(ctx, r.redis, []string{r.key(key)},
		now.UnixMilli(),
		r.policy.Threshold,
		r.policy.Duration.Milliseconds(),
		ttl,
	).Int64Slice()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(reply) != 3 {
		return Status{}, fmt.Errorf("%w: unexpected script reply %v", ErrUnavailable, reply)
	}
	if reply[0] == 0 {
		return Status{State: StateClear}, nil
	}

	return r.policy.status(Entry{
		Failures:      int(reply[1]),
		LastFailureAt: time.UnixMilli(reply[2]),
	}), nil
}

func (r *RedisStore) Check(ctx context.Context, key string, now time.Time) (Status, error) {
	return r.run(ctx, checkScript, key, now)
}

func (r *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time) (Status, error) {
	return r.run(ctx, failureScript, key, now)
}

func (r *RedisStore) RecordSuccess(ctx context.Context, key string, now time.Time) (Status, error) {
	return r.run(ctx, successScript, key, now)
}

func (r *RedisStore) Reset(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep is a no-op: Redis evicts idle hashes through their TTL and expired
// lockouts are cleared by the next script that reads them.
func (r *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
