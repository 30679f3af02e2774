package loginguard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func BenchmarkAuthenticateSuccess(b *testing.B) {
	f := newGuardFixture(b, guardTestConfig())
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := f.guard.Authenticate(ctx, "alice@example.com", "correct horse battery"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAuthenticateUnknownIdentity(b *testing.B) {
	cfg := guardTestConfig()
	cfg.Lockout.Threshold = 1 << 30
	f := newGuardFixture(b, cfg)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := f.guard.Authenticate(ctx, "nobody@example.com", "guess"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAuthenticateLockedOut(b *testing.B) {
	cfg := guardTestConfig()
	cfg.Lockout.Threshold = 1
	f := newGuardFixture(b, cfg)
	ctx := context.Background()
	if _, err := f.guard.Authenticate(ctx, "bob@example.com", "wrong"); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := f.guard.Authenticate(ctx, "bob@example.com", "bob-secret-123"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAuthenticateRedisParallel(b *testing.B) {
	mr := miniredis.RunT(b)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })

	f := newGuardFixture(b, guardTestConfig(), func(bl *Builder) { bl.WithRedis(rdb) })
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := f.guard.Authenticate(ctx, "alice@example.com", "correct horse battery"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
