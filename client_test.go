package goAuthClient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAuthClient/session"
)

const testPassword = "correct-password-123"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// backend is a stub of the recruitment API: login, refresh, and one protected
// endpoint. Tokens are opaque so the client falls back to its configured TTL.
type backend struct {
	mu           sync.Mutex
	tokenSeq     int
	valid        map[string]bool
	revoked      map[string]bool
	refreshCalls int
	refreshFail  bool
	rejectAll    bool
	onRefresh    func()
	refreshGate  <-chan struct{}
	srv          *httptest.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{
		valid:   make(map[string]bool),
		revoked: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("GET /api/profile", b.handleProfile)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)

	return b
}

func (b *backend) issueToken() string {
	b.tokenSeq++
	token := fmt.Sprintf("tok-%d", b.tokenSeq)
	b.valid[token] = true
	return token
}

func (b *backend) latestToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("tok-%d", b.tokenSeq)
}

func (b *backend) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

func (b *backend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func (b *backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.mu.Lock()
	token := b.issueToken()
	b.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"user": map[string]string{
			"id":           "u-1",
			"email":        body.Email,
			"display_name": "Alice",
			"role":         "recruiter",
		},
	})
}

func (b *backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	fail := b.refreshFail
	hook := b.onRefresh
	gate := b.refreshGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if hook != nil {
		hook()
	}
	if fail || bearerOf(r) == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.mu.Lock()
	token := b.issueToken()
	b.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": token})
}

func (b *backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	token := bearerOf(r)

	b.mu.Lock()
	ok := !b.rejectAll && b.valid[token] && !b.revoked[token]
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func bearerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

type clientTestEnv struct {
	client  *Client
	backend *backend
	redis   *redis.Client
	mini    *miniredis.Miniredis

	mu      sync.Mutex
	expired []error
}

func (e *clientTestEnv) expiredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.expired)
}

func newClientTestEnv(t *testing.T, mutate func(*Config)) *clientTestEnv {
	t.Helper()

	b := newBackend(t)
	mr, rdb := newTestRedis(t)
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	cfg := DefaultConfig()
	cfg.BaseURL = b.srv.URL
	if mutate != nil {
		mutate(&cfg)
	}

	env := &clientTestEnv{backend: b, redis: rdb, mini: mr}

	client, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSessionExpiredHandler(func(cause error) {
			env.mu.Lock()
			env.expired = append(env.expired, cause)
			env.mu.Unlock()
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)

	env.client = client
	return env
}

// seedExpiredSession stores a session whose credential the backend recognizes
// but whose expiry is already behind the validity margin.
func seedExpiredSession(t *testing.T, env *clientTestEnv) *session.Session {
	t.Helper()

	env.backend.mu.Lock()
	token := env.backend.issueToken()
	env.backend.mu.Unlock()

	now := time.Now()
	sess := &session.Session{
		Credential: token,
		Identity: session.Identity{
			ID:          "u-1",
			Email:       "alice@example.com",
			DisplayName: "Alice",
			Role:        "recruiter",
		},
		Generation:    1,
		SchemaVersion: session.CurrentSchemaVersion,
		IssuedAt:      now.Add(-2 * time.Hour).Unix(),
		ExpiresAt:     now.Add(-time.Minute).Unix(),
	}
	if err := env.client.store.Set(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

func TestLoginStoresSession(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()

	sess, err := env.client.Login(ctx, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", sess.Generation)
	}
	if sess.Identity.ID != "u-1" || sess.Identity.Role != "recruiter" {
		t.Fatalf("unexpected identity: %+v", sess.Identity)
	}

	stored, err := env.client.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if stored.Credential != sess.Credential {
		t.Fatalf("stored credential mismatch: %q vs %q", stored.Credential, sess.Credential)
	}

	if got := env.client.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected login success metric 1, got %d", got)
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := env.client.CurrentSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session after rejected login, got %v", err)
	}
	if got := env.client.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("expected login failure metric 1, got %d", got)
	}
}

func TestLoginTransportFailure(t *testing.T) {
	env := newClientTestEnv(t, nil)
	env.backend.srv.Close()

	if _, err := env.client.Login(context.Background(), "alice@example.com", testPassword); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestLogoutClearsSessionAndIsIdempotent(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "alice@example.com", testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := env.client.Logout(ctx); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if err := env.client.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	if _, err := env.client.CurrentSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session after logout, got %v", err)
	}
}

func TestInitializeWithoutStoredSession(t *testing.T) {
	env := newClientTestEnv(t, nil)

	if _, err := env.client.Initialize(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestInitializeAdoptsValidSession(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()

	logged, err := env.client.Login(ctx, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	adopted, err := env.client.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if adopted.Credential != logged.Credential {
		t.Fatalf("adopted a different session: %q vs %q", adopted.Credential, logged.Credential)
	}
	if env.backend.refreshCount() != 0 {
		t.Fatalf("adopting a valid session must not refresh, got %d calls", env.backend.refreshCount())
	}
	if got := env.client.MetricsSnapshot().Counters[MetricSessionAdopted]; got != 1 {
		t.Fatalf("expected session adopted metric 1, got %d", got)
	}
}

func TestInitializeRefreshesExpiredSession(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()
	seeded := seedExpiredSession(t, env)

	recovered, err := env.client.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if recovered.Credential == seeded.Credential {
		t.Fatal("expected a renewed credential")
	}
	if recovered.Generation != seeded.Generation+1 {
		t.Fatalf("expected generation %d, got %d", seeded.Generation+1, recovered.Generation)
	}
	if env.backend.refreshCount() != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", env.backend.refreshCount())
	}
}

func TestInitializeClearsSessionWhenRefreshFails(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()
	seedExpiredSession(t, env)

	env.backend.mu.Lock()
	env.backend.refreshFail = true
	env.backend.mu.Unlock()

	if _, err := env.client.Initialize(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := env.client.CurrentSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected store cleared after failed startup refresh, got %v", err)
	}
}

func TestInitializeDiscardsCorruptSession(t *testing.T) {
	env := newClientTestEnv(t, nil)
	ctx := context.Background()

	if err := env.redis.Set(ctx, "acs:current", []byte{0x01, 0x02}, 0).Err(); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	if _, err := env.client.Initialize(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for corrupt blob, got %v", err)
	}
	if got := env.client.MetricsSnapshot().Counters[MetricSessionCorrupt]; got != 1 {
		t.Fatalf("expected session corrupt metric 1, got %d", got)
	}
}

func TestNilClientReturnsNotReady(t *testing.T) {
	var c *Client

	if _, err := c.Login(context.Background(), "a", "b"); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if err := c.Logout(context.Background()); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if _, err := c.Initialize(context.Background()); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}

func TestBuilderRequiresRedis(t *testing.T) {
	if _, err := New().WithBaseURL("https://api.example.com").Build(); err == nil {
		t.Fatal("expected Build to fail without a Redis client")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer func() {
		rdb.Close()
		mr.Close()
	}()

	b := New().WithBaseURL("https://api.example.com").WithRedis(rdb)
	if _, err := b.Build(); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
