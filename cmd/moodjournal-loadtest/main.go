// Command moodjournal-loadtest drives many clients against an in-process fake
// API and expires every access token once per round, so each round exercises
// the shared refresh path under contention.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	moodjournal "github.com/MrEthical07/moodjournal"
	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/apitest"
	"github.com/MrEthical07/moodjournal/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		clients      = flag.Int("clients", 20, "number of logged-in clients")
		concurrency  = flag.Int("concurrency", 16, "concurrent requests per client per round")
		rounds       = flag.Int("rounds", 20, "token expiry rounds")
		refreshDelay = flag.Duration("refresh-delay", 20*time.Millisecond, "server-side refresh latency")
		useRedis     = flag.Bool("redis", false, "persist credentials in redis instead of memory")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	srv := apitest.New(apitest.Options{})
	defer srv.Close()
	srv.RefreshDelay(*refreshDelay)

	var rdb redis.UniversalClient
	if *useRedis {
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
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		defer func() { _ = rdb.Close() }()
	}

	fmt.Printf("logging in %d clients...\n", *clients)
	pool := make([]*moodjournal.Client, *clients)
	for i := range pool {
		email := fmt.Sprintf("user-%d@example.com", i)
		srv.AddUser(email, fmt.Sprintf("User %d", i), "password")

		var store session.TokenStore
		if rdb != nil {
			store = session.NewRedisStore(rdb, "loadtest", email, time.Hour)
		}
		c, err := moodjournal.New().
			WithBaseURL(srv.URL()+"/api").
			WithTokenStore(store).
			WithBaseTransport(srv.Client().Transport).
			WithLatencyHistograms(true).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()
		if err := c.Login(ctx, email, "password"); err != nil {
			fmt.Fprintf(os.Stderr, "login %s: %v\n", email, err)
			os.Exit(1)
		}
		pool[i] = c
	}
	srv.ResetCalls()

	stats := runStorm(ctx, srv, pool, *concurrency, *rounds)

	var started, retried, rejected uint64
	for _, c := range pool {
		snap := c.MetricsSnapshot()
		started += snap.Counters[moodjournal.MetricRefreshStarted]
		retried += snap.Counters[moodjournal.MetricRetryAfterRefresh]
		rejected += snap.Counters[moodjournal.MetricRetryUnauthorized]
	}

	fmt.Println("---- results ----")
	printStats("requests", stats)
	fmt.Printf("refresh: server_calls=%d client_started=%d expected=%d\n",
		srv.Calls("/api/auth/refresh"), started, *clients**rounds)
	fmt.Printf("retries: after_refresh=%d rejected_again=%d\n", retried, rejected)
}

// runStorm expires all tokens, then has every client fire concurrency
// requests at once, for the given number of rounds.
func runStorm(ctx context.Context, srv *apitest.Server, pool []*moodjournal.Client, concurrency, rounds int) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, len(pool)*concurrency*rounds)
		mu        sync.Mutex
		total     time.Duration
	)

	for r := 0; r < rounds; r++ {
		srv.ExpireAccessTokens()

		var wg sync.WaitGroup
		start := time.Now()
		for _, c := range pool {
			for w := 0; w < concurrency; w++ {
				wg.Add(1)
				go func(c *moodjournal.Client) {
					defer wg.Done()
					t0 := time.Now()
					_, err := c.Entries().List(ctx, api.DefaultListOptions())
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}(c)
			}
		}
		wg.Wait()
		total += time.Since(start)
	}
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
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
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
