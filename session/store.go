package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the persistence medium cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorrupt is returned when a stored session blob fails to decode. The store
// clears the key before returning it, so callers may treat it as absent.
var ErrCorrupt = errors.New("corrupt session")

const minSessionTTL = time.Second

const replaceSessionScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var replaceSessionLua = redis.NewScript(replaceSessionScript)

// Store is a Redis-backed holder for the process's current session. It persists
// exactly one session per slot, survives restarts, and guarantees atomic replace
// semantics: readers never observe a partially written session.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	slot   string
	grace  time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client. prefix
// sets the Redis key namespace and slot names the session within it (an empty
// slot defaults to "current"). grace extends the key TTL beyond the credential
// expiry so an expired-but-refreshable session outlives its token.
func NewStore(redis redis.UniversalClient, prefix, slot string, grace time.Duration) *Store {
	if slot == "" {
		slot = "current"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
		slot:   slot,
		grace:  grace,
	}
}

func (s *Store) key() string {
	return s.prefix + ":" + s.slot
}

// Get retrieves the current session. Returns redis.Nil when absent and
// [ErrCorrupt] (after clearing the key) when the stored blob does not decode.
// An expired session is still returned; validity is the token package's call.
func (s *Store) Get(ctx context.Context) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		if clearErr := s.Clear(ctx); clearErr != nil {
			return nil, clearErr
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return sess, nil
}

// Set persists the session, replacing whatever was stored. The write is a
// single SET of the encoded blob, so concurrent readers see either the old
// session or the new one, never a mix.
func (s *Store) Set(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(), data, s.ttlFor(sess)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear removes the session. Idempotent: clearing an absent session succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Replace atomically swaps prev for next, but only if prev is still the stored
// session (byte-for-byte). It reports whether the swap was applied. A refresh
// write-back goes through Replace so it cannot resurrect a session that a
// concurrent logout already cleared.
func (s *Store) Replace(ctx context.Context, prev, next *Session) (bool, error) {
	prevData, err := Encode(prev)
	if err != nil {
		return false, err
	}
	nextData, err := Encode(next)
	if err != nil {
		return false, err
	}

	applied, err := replaceSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key()},
		prevData,
		nextData,
		s.ttlFor(next).Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return applied == 1, nil
}

func (s *Store) ttlFor(sess *Session) time.Duration {
	ttl := time.Until(time.Unix(sess.ExpiresAt, 0)) + s.grace
	if ttl < minSessionTTL {
		ttl = minSessionTTL
	}
	return ttl
}
