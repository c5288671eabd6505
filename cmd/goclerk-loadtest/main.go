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

	goClerk "github.com/MrEthical07/goClerk"
	"github.com/MrEthical07/goClerk/internal/fapitest"
	"github.com/MrEthical07/goClerk/resource"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type device struct {
	engine *goClerk.Engine
	email  string
}

func main() {
	var (
		devices     = flag.Int("devices", 200, "number of simulated devices")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		tokenOps    = flag.Int("token-ops", 20000, "session token reads in the token phase")
		skipCache   = flag.Float64("skip-cache", 0.1, "fraction of token reads that bypass the cache")
		latency     = flag.Duration("latency", 0, "artificial latency of the fake Frontend API")
		redisAddr   = flag.String("redis-addr", "", "redis address for device keychains; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *devices <= 0 || *concurrency <= 0 || *tokenOps <= 0 || *skipCache < 0 || *skipCache > 1 {
		fmt.Fprintln(os.Stderr, "devices, concurrency and token-ops must be > 0; skip-cache must be in [0,1]")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	srv := fapitest.New(fapitest.Options{Latency: *latency})
	defer srv.Close()
	fmt.Printf("fake frontend api at %s\n", srv.URL)

	fleet, err := buildFleet(srv.URL, client, *devices)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engines: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, d := range fleet {
			d.engine.Close()
		}
	}()

	signUpStats := runSignUpPhase(ctx, fleet, *concurrency)
	tokenStats := runTokenPhase(ctx, fleet, *tokenOps, *concurrency, *skipCache)

	fmt.Println("---- results ----")
	printStats("sign-up", signUpStats)
	printStats("token", tokenStats)
	printCounters(fleet, srv)
}

func buildFleet(baseURL string, client redis.UniversalClient, n int) ([]*device, error) {
	fleet := make([]*device, n)
	for i := range fleet {
		cfg := goClerk.DefaultConfig()
		cfg.API.BaseURL = baseURL
		cfg.Keychain.Service = fmt.Sprintf("loadtest-%d", i)
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true

		e, err := goClerk.New().WithConfig(cfg).WithRedis(client).Build()
		if err != nil {
			return nil, err
		}
		fleet[i] = &device{engine: e, email: fmt.Sprintf("device-%d@loadtest.example.com", i)}
	}
	return fleet, nil
}

// runSignUpPhase walks every device through create, prepare and attempt.
// Latency is recorded per step.
func runSignUpPhase(ctx context.Context, fleet []*device, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(fleet)*3)
		mu        sync.Mutex
	)

	record := func(d time.Duration, err error) bool {
		if err != nil {
			atomic.AddInt64(&failures, 1)
		}
		mu.Lock()
		latencies = append(latencies, d)
		mu.Unlock()
		return err == nil
	}

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(fleet) {
					return
				}
				flow := fleet[i].engine.SignUp()

				t0 := time.Now()
				_, err := flow.Create(ctx, resource.SignUpCreateParams{EmailAddress: fleet[i].email})
				if !record(time.Since(t0), err) {
					continue
				}
				t0 = time.Now()
				_, err = flow.PrepareVerification(ctx, resource.EmailCode)
				if !record(time.Since(t0), err) {
					continue
				}
				t0 = time.Now()
				_, err = flow.AttemptVerification(ctx, resource.EmailCode, fapitest.DefaultCode)
				record(time.Since(t0), err)
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runTokenPhase(ctx context.Context, fleet []*device, ops, concurrency int, skipCache float64) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)
	skipEvery := 0
	if skipCache > 0 {
		skipEvery = int(1 / skipCache)
	}

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				d := fleet[i%len(fleet)]
				opts := goClerk.TokenOptions{SkipCache: skipEvery > 0 && i%skipEvery == 0}

				t0 := time.Now()
				_, err := d.engine.SessionToken(ctx, opts)
				took := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, took)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total, failures: failures}
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

func printCounters(fleet []*device, srv *fapitest.Server) {
	var requests, cacheHits, fetches, rotated uint64
	for _, d := range fleet {
		snap := d.engine.MetricsSnapshot()
		requests += snap.Counters[goClerk.MetricRequest]
		cacheHits += snap.Counters[goClerk.MetricSessionTokenCacheHit]
		fetches += snap.Counters[goClerk.MetricSessionTokenFetch]
		rotated += snap.Counters[goClerk.MetricDeviceTokenRotated]
	}
	fmt.Printf("requests=%d server_requests=%d token_fetches=%d token_cache_hits=%d device_tokens_rotated=%d\n",
		requests, srv.Requests(), fetches, cacheHits, rotated)
}
