package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "acs", "current", time.Hour)
	return store, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession() *Session {
	now := time.Now()
	return &Session{
		Credential: "token-abc",
		Identity: Identity{
			ID:          "u-1",
			Email:       "alice@example.com",
			DisplayName: "Alice",
			Role:        "recruiter",
		},
		Generation:    1,
		SchemaVersion: CurrentSchemaVersion,
		IssuedAt:      now.Unix(),
		ExpiresAt:     now.Add(time.Hour).Unix(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Set(ctx, sess); err != nil {
		t.Fatalf("set session: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Credential != sess.Credential {
		t.Fatalf("credential mismatch: got %q want %q", got.Credential, sess.Credential)
	}
	if got.Identity != sess.Identity {
		t.Fatalf("identity mismatch: got %+v want %+v", got.Identity, sess.Identity)
	}
	if got.Generation != sess.Generation {
		t.Fatalf("generation mismatch: got %d want %d", got.Generation, sess.Generation)
	}
}

func TestGetAbsentReturnsRedisNil(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	if _, err := store.Get(context.Background()); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for absent session, got %v", err)
	}
}

func TestCorruptBlobClearedAndReported(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := rdb.Set(ctx, store.key(), []byte{0xDE, 0xAD, 0xBE}, 0).Err(); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	if _, err := store.Get(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	// The corrupt key must be gone: the next read observes absence, not the
	// same corruption again.
	if _, err := store.Get(ctx); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after corrupt blob cleanup, got %v", err)
	}
}

func TestClearIdempotent(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Set(ctx, testSession()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestReplaceAppliesWhenStoredMatches(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	prev := testSession()
	if err := store.Set(ctx, prev); err != nil {
		t.Fatalf("set session: %v", err)
	}

	next := *prev
	next.Credential = "token-renewed"
	next.Generation = prev.Generation + 1
	next.IssuedAt = prev.IssuedAt + 10
	next.ExpiresAt = prev.ExpiresAt + 3600

	applied, err := store.Replace(ctx, prev, &next)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !applied {
		t.Fatal("expected replace to apply")
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if got.Credential != "token-renewed" || got.Generation != prev.Generation+1 {
		t.Fatalf("unexpected session after replace: %+v", got)
	}
}

func TestReplaceRejectedAfterClear(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	prev := testSession()
	if err := store.Set(ctx, prev); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	next := *prev
	next.Credential = "token-renewed"
	next.Generation = prev.Generation + 1

	applied, err := store.Replace(ctx, prev, &next)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if applied {
		t.Fatal("replace after clear must not resurrect the session")
	}

	if _, err := store.Get(ctx); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected absent session after rejected replace, got %v", err)
	}
}

func TestReplaceRejectedWhenStoredChanged(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	prev := testSession()
	if err := store.Set(ctx, prev); err != nil {
		t.Fatalf("set session: %v", err)
	}

	other := *prev
	other.Credential = "token-from-elsewhere"
	other.Generation = prev.Generation + 1
	if err := store.Set(ctx, &other); err != nil {
		t.Fatalf("overwrite session: %v", err)
	}

	next := *prev
	next.Credential = "token-stale-renewal"
	next.Generation = prev.Generation + 1

	applied, err := store.Replace(ctx, prev, &next)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if applied {
		t.Fatal("replace must not overwrite a session it did not read")
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Credential != "token-from-elsewhere" {
		t.Fatalf("stored session clobbered: %+v", got)
	}
}

func TestGetUnavailableWrapsSentinel(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	done()
	_ = rdb

	if _, err := store.Get(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
