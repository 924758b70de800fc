package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/goAuthClient/session"
)

// ErrThrottled is returned when the storm throttle denied a new cycle. Only a
// would-be leader is throttled; joining an in-flight cycle is always allowed.
var ErrThrottled = errors.New("refresh cycle throttled")

// ErrSuperseded is returned when the renewal succeeded upstream but the stored
// session changed while the cycle ran, typically a logout. The renewed
// credential is discarded rather than written back.
var ErrSuperseded = errors.New("session changed during refresh")

// Store is the session persistence surface the coordinator needs.
type Store interface {
	Get(ctx context.Context) (*session.Session, error)
	Replace(ctx context.Context, prev, next *session.Session) (bool, error)
}

// Func performs one upstream renewal call: given the current session it returns
// the renewed session (same identity, new credential and expiry) or an error.
// Implementations must not mutate current.
type Func func(ctx context.Context, current *session.Session) (*session.Session, error)

// Observer receives coordinator outcomes for metrics. All methods may be called
// concurrently.
type Observer interface {
	RefreshSucceeded(elapsed time.Duration)
	RefreshFailed()
	RefreshCollapsed()
	RefreshThrottled()
}

type nopObserver struct{}

func (nopObserver) RefreshSucceeded(time.Duration) {}
func (nopObserver) RefreshFailed()                 {}
func (nopObserver) RefreshCollapsed()              {}
func (nopObserver) RefreshThrottled()              {}

// Options configures optional coordinator collaborators.
type Options struct {
	// Limiter bounds how often new cycles may start. Nil disables throttling.
	Limiter *rate.Limiter
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// Observer defaults to a no-op observer.
	Observer Observer
}

type outcome struct {
	credential string
	err        error
}

// Coordinator serializes credential renewal so concurrent callers collapse into
// a single upstream call. Safe for use from multiple goroutines.
type Coordinator struct {
	store    Store
	renew    Func
	limiter  *rate.Limiter
	log      zerolog.Logger
	observer Observer

	mu       sync.Mutex
	inFlight bool
	waiters  []chan outcome
}

// NewCoordinator creates a [Coordinator] over the given store and renewal call.
func NewCoordinator(store Store, renew Func, opts Options) *Coordinator {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	observer := Observer(nopObserver{})
	if opts.Observer != nil {
		observer = opts.Observer
	}
	return &Coordinator{
		store:    store,
		renew:    renew,
		limiter:  opts.Limiter,
		log:      log,
		observer: observer,
	}
}

// Do returns a fresh credential, performing at most one upstream renewal call
// regardless of how many goroutines ask concurrently. Callers that find a cycle
// in flight suspend until it drains and share its outcome; a caller whose ctx
// is cancelled while waiting unblocks with ctx.Err() without affecting the
// cycle. On success the renewed session has been written back to the store
// before any caller observes the credential.
func (c *Coordinator) Do(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		c.observer.RefreshCollapsed()
		select {
		case out := <-ch:
			return out.credential, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Unlock()
		c.observer.RefreshThrottled()
		c.log.Warn().Msg("refresh cycle throttled")
		return "", ErrThrottled
	}

	c.inFlight = true
	c.mu.Unlock()

	started := time.Now()
	out := c.runCycle(ctx)

	c.mu.Lock()
	c.inFlight = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	// Buffered sends in arrival order: drain is deterministic and never blocks
	// on a waiter that gave up.
	for _, ch := range waiters {
		ch <- out
	}

	if out.err != nil {
		c.observer.RefreshFailed()
		c.log.Warn().Err(out.err).Int("waiters", len(waiters)).Msg("refresh cycle failed")
	} else {
		c.observer.RefreshSucceeded(time.Since(started))
		c.log.Debug().Int("waiters", len(waiters)).Msg("refresh cycle completed")
	}

	return out.credential, out.err
}

func (c *Coordinator) runCycle(ctx context.Context) outcome {
	current, err := c.store.Get(ctx)
	if err != nil {
		return outcome{err: err}
	}

	next, err := c.renew(ctx, current)
	if err != nil {
		return outcome{err: err}
	}

	applied, err := c.store.Replace(ctx, current, next)
	if err != nil {
		return outcome{err: err}
	}
	if !applied {
		return outcome{err: ErrSuperseded}
	}

	return outcome{credential: next.Credential}
}
