// Command goauthclient-loadtest hammers one client with concurrent
// authenticated requests while the stub backend periodically revokes the
// issued credential, forcing refresh storms. It reports request latency
// percentiles and the client's own view of how the storms collapsed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		concurrency  = flag.Int("concurrency", 64, "number of concurrent workers")
		ops          = flag.Int("ops", 50000, "total authenticated requests")
		revokeEvery  = flag.Duration("revoke-every", 250*time.Millisecond, "interval between server-side credential revocations")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix       = flag.String("prefix", "acs", "session key prefix")
		withThrottle = flag.Bool("throttle", false, "enable the refresh storm throttle")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := newStormBackend()
	srv := httptest.NewServer(backend.routes())
	defer srv.Close()

	cfg := goAuthClient.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Session.RedisPrefix = *prefix
	cfg.Metrics.EnableLatencyHistograms = true
	if *withThrottle {
		cfg.Refresh.ThrottleEnabled = true
		cfg.Refresh.ThrottleInterval = 100 * time.Millisecond
		cfg.Refresh.ThrottleBurst = 2
	}

	ac, err := goAuthClient.New().
		WithConfig(cfg).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client build failed: %v\n", err)
		os.Exit(1)
	}
	defer ac.Close()

	if _, err := ac.Login(ctx, "load@example.com", stormPassword); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	stopRevoker := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*revokeEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				backend.revokeAllIssued()
			case <-stopRevoker:
				return
			}
		}
	}()

	fmt.Printf("running %d requests over %d workers...\n", *ops, *concurrency)
	latencies := make([]time.Duration, *ops)
	var next atomic.Int64
	var failed atomic.Uint64

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(*concurrency)
	for w := 0; w < *concurrency; w++ {
		go func() {
			defer wg.Done()
			for {
				i := next.Add(1) - 1
				if i >= int64(*ops) {
					return
				}

				began := time.Now()
				req, err := ac.NewRequest(ctx, http.MethodGet, "/api/profile", nil)
				if err != nil {
					failed.Add(1)
					continue
				}
				resp, err := ac.Do(req)
				latencies[i] = time.Since(began)
				if err != nil {
					failed.Add(1)
					continue
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					failed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(stopRevoker)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		idx := int(float64(len(latencies)-1) * p)
		return latencies[idx]
	}

	snap := ac.MetricsSnapshot()
	fmt.Printf("done in %s (%.0f req/s), %d failed\n", elapsed.Round(time.Millisecond),
		float64(*ops)/elapsed.Seconds(), failed.Load())
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n",
		pct(0.50), pct(0.95), pct(0.99), latencies[len(latencies)-1])
	fmt.Printf("refreshes=%d collapsed=%d throttled=%d retried=%d teardowns=%d\n",
		snap.Counters[goAuthClient.MetricRefreshSuccess],
		snap.Counters[goAuthClient.MetricRefreshCollapsed],
		snap.Counters[goAuthClient.MetricRefreshThrottled],
		snap.Counters[goAuthClient.MetricRequestRetried],
		snap.Counters[goAuthClient.MetricSessionTeardown],
	)
}

const stormPassword = "load-test-password"

// stormBackend issues opaque tokens and lets the revoker invalidate them all
// at once, so every in-flight worker hits a 401 at the same moment.
type stormBackend struct {
	mu      sync.Mutex
	seq     int
	valid   map[string]bool
	revoked map[string]bool
}

func newStormBackend() *stormBackend {
	return &stormBackend{
		valid:   make(map[string]bool),
		revoked: make(map[string]bool),
	}
}

func (b *stormBackend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("GET /api/profile", b.handleProfile)
	return mux
}

func (b *stormBackend) issue() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	token := fmt.Sprintf("storm-token-%d", b.seq)
	b.valid[token] = true
	return token
}

func (b *stormBackend) revokeAllIssued() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token := range b.valid {
		b.revoked[token] = true
	}
}

func (b *stormBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != stormPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": b.issue(),
		"user": map[string]string{
			"id":           "load-1",
			"email":        body.Email,
			"display_name": "Load Tester",
			"role":         "recruiter",
		},
	})
}

func (b *stormBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if bearer(r) == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": b.issue()})
}

func (b *stormBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)

	b.mu.Lock()
	ok := b.valid[token] && !b.revoked[token]
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
