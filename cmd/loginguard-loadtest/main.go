// Command loginguard-loadtest drives Authenticate from many goroutines and
// reports latency percentiles plus a lost-update check on the failure
// counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/store"
	"github.com/MrEthical07/loginguard/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const seedPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 5000, "authenticate calls in the mixed phase")
		failRatio   = flag.Float64("fail-ratio", 0.3, "share of attempts with a wrong secret")
		hammer      = flag.Int("hammer", 2000, "concurrent failures for the lost-update phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		memoryOnly  = flag.Bool("memory", false, "use the in-process lockout backend instead of redis")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *hammer <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, ops and hammer must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	var client redis.UniversalClient
	if !*memoryOnly {
		addr := *redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
				os.Exit(1)
			}
			defer mr.Close()
			addr = mr.Addr()
			fmt.Printf("using miniredis at %s\n", addr)
		} else {
			fmt.Printf("using redis at %s\n", addr)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		defer client.Close()
	}

	cfg := loginguard.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Timing.PadLockedOut = false
	cfg.Lockout.Threshold = 1 << 30
	cfg.Lockout.RedisPrefix = fmt.Sprintf("lg:loadtest:%d:", time.Now().UnixNano())

	creds := memory.New()
	builder := loginguard.New().WithConfig(cfg).WithCredentialStore(creds)
	if client != nil {
		builder.WithRedis(client)
	}
	guard, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build guard: %v\n", err)
		os.Exit(1)
	}
	defer guard.Close()

	identities := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range identities {
		identities[i] = fmt.Sprintf("user-%d@loadtest.local", i)
		if _, err := store.Seed(ctx, creds, guard.Hasher(), identities[i], "", seedPassword); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	mixed := runMixedPhase(ctx, guard, identities, *ops, *concurrency, *failRatio)
	counted, lost := runHammerPhase(ctx, guard, *hammer, *concurrency)

	fmt.Println("---- results ----")
	printStats("authenticate", mixed)
	fmt.Printf("hammer: failures=%d recorded=%d lost=%d\n", *hammer, counted, lost)
	if lost != 0 {
		os.Exit(1)
	}
}

func runMixedPhase(ctx context.Context, guard *loginguard.Guard, identities []string, ops, concurrency int, failRatio float64) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		errs      int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				identity := identities[r.Intn(len(identities))]
				secret := seedPassword
				if r.Float64() < failRatio {
					secret = "wrong-" + seedPassword
				}
				t0 := time.Now()
				_, err := guard.Authenticate(ctx, identity, secret)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&errs, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, errs)
}

// runHammerPhase sends n wrong secrets for a single identity concurrently and
// compares the recorded failure count with n.
func runHammerPhase(ctx context.Context, guard *loginguard.Guard, n, concurrency int) (int, int) {
	const identity = "hammer@loadtest.local"

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := guard.Authenticate(gctx, identity, "wrong")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "hammer phase: %v\n", err)
		os.Exit(1)
	}

	st, err := guard.Status(ctx, identity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
	return st.Failures, n - st.Failures
}

type phaseStats struct {
	total   time.Duration
	ops     int
	errors  int64
	p50     time.Duration
	p95     time.Duration
	p99     time.Duration
	opsPerS float64
}

func computeStats(total time.Duration, samples []time.Duration, errs int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(samples),
		errors:  errs,
		p50:     percentile(samples, 50),
		p95:     percentile(samples, 95),
		p99:     percentile(samples, 99),
		opsPerS: float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d errors=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.errors,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
