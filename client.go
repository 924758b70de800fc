package goAuthClient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/token"
)

// Client owns the session lifecycle against the backend: login, logout, startup
// recovery, and the authenticated request pipeline. Construct it through
// [Builder.Build]; all methods are then safe for concurrent use.
type Client struct {
	config  Config
	log     zerolog.Logger
	http    *http.Client
	baseURL string

	store       *session.Store
	coordinator *refresh.Coordinator
	metrics     *Metrics
	events      *eventDispatcher

	onSessionExpired func(error)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	User        loginUser `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type coordinatorObserver struct {
	metrics *Metrics
}

func (o coordinatorObserver) RefreshSucceeded(elapsed time.Duration) {
	o.metrics.Inc(MetricRefreshSuccess)
	o.metrics.Observe(MetricRefreshLatency, elapsed)
}

func (o coordinatorObserver) RefreshFailed() {
	o.metrics.Inc(MetricRefreshFailure)
}

func (o coordinatorObserver) RefreshCollapsed() {
	o.metrics.Inc(MetricRefreshCollapsed)
}

func (o coordinatorObserver) RefreshThrottled() {
	o.metrics.Inc(MetricRefreshThrottled)
}

// Login authenticates against the backend and stores the resulting session.
// Rejected credentials surface as [ErrInvalidCredentials]; network failures as
// [ErrTransport]. On success the returned session is the stored one.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	if c == nil || c.store == nil {
		return nil, ErrClientNotReady
	}

	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, Event{Type: EventLoginFailed, Email: email, Error: err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, Event{Type: EventLoginFailed, Email: email, Error: ErrInvalidCredentials.Error()})
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, Event{Type: EventLoginFailed, Email: email, Error: fmt.Sprintf("login status %d", resp.StatusCode)})
		return nil, fmt.Errorf("%w: login status %d", ErrTransport, resp.StatusCode)
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: decode login response: %v", ErrTransport, err)
	}
	if payload.AccessToken == "" {
		c.metrics.Inc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: login response missing access token", ErrTransport)
	}

	now := time.Now()
	sess := &session.Session{
		Credential: payload.AccessToken,
		Identity: session.Identity{
			ID:          payload.User.ID,
			Email:       payload.User.Email,
			DisplayName: payload.User.DisplayName,
			Role:        payload.User.Role,
		},
		Generation:    1,
		SchemaVersion: session.CurrentSchemaVersion,
		IssuedAt:      now.Unix(),
		ExpiresAt:     token.ExpiryOf(payload.AccessToken, now, c.config.Token.FallbackTTL).Unix(),
	}

	if err := c.store.Set(ctx, sess); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, Event{Type: EventLogin, UserID: sess.Identity.ID, Email: sess.Identity.Email, Success: true})
	c.log.Info().Str("user_id", sess.Identity.ID).Msg("logged in")

	return sess, nil
}

// Logout clears the stored session unconditionally. It is never blocked by an
// in-flight refresh: the refresh's eventual write-back is a compare-and-set
// that finds the session gone and discards the renewed credential.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.store == nil {
		return ErrClientNotReady
	}

	if err := c.store.Clear(ctx); err != nil {
		return err
	}

	c.metrics.Inc(MetricLogout)
	c.emit(ctx, Event{Type: EventLogout, Success: true})
	c.log.Info().Msg("logged out")

	return nil
}

// Initialize recovers the session at startup. A stored, valid session is
// adopted as-is; a stored but expired one triggers exactly one refresh attempt.
// When nothing usable remains the store is left clear and [ErrNoSession] is
// returned; the caller should treat the process as logged out.
func (c *Client) Initialize(ctx context.Context) (*session.Session, error) {
	if c == nil || c.store == nil {
		return nil, ErrClientNotReady
	}

	sess, err := c.store.Get(ctx)
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		return nil, ErrNoSession
	case errors.Is(err, session.ErrCorrupt):
		c.metrics.Inc(MetricSessionCorrupt)
		c.log.Warn().Msg("stored session corrupt, discarded")
		return nil, fmt.Errorf("%w: corrupt session discarded", ErrNoSession)
	default:
		return nil, err
	}

	if token.Valid(sess, time.Now(), c.config.Token.ValidityMargin) {
		c.metrics.Inc(MetricSessionAdopted)
		c.emit(ctx, Event{Type: EventSessionAdopted, UserID: sess.Identity.ID, Success: true})
		c.log.Info().Str("user_id", sess.Identity.ID).Msg("session adopted")
		return sess, nil
	}

	if _, err := c.coordinator.Do(ctx); err != nil {
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			return nil, clearErr
		}
		c.emit(ctx, Event{Type: EventSessionTeardown, UserID: sess.Identity.ID, Error: err.Error()})
		c.log.Warn().Err(err).Msg("startup refresh failed, session cleared")
		return nil, fmt.Errorf("%w: startup refresh failed: %v", ErrNoSession, err)
	}

	sess, err = c.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricSessionAdopted)
	c.emit(ctx, Event{Type: EventSessionAdopted, UserID: sess.Identity.ID, Success: true, Metadata: map[string]string{"refreshed": "true"}})
	return sess, nil
}

// CurrentSession returns the stored session without side effects beyond the
// corrupt-blob cleanup the store itself performs.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	if c == nil || c.store == nil {
		return nil, ErrClientNotReady
	}

	sess, err := c.store.Get(ctx)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		if errors.Is(err, session.ErrCorrupt) {
			c.metrics.Inc(MetricSessionCorrupt)
			return nil, fmt.Errorf("%w: corrupt session discarded", ErrNoSession)
		}
		return nil, err
	}
	return sess, nil
}

// MetricsSnapshot returns a point-in-time copy of the client's metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return c.metrics.Snapshot()
}

// EventsDropped returns the number of lifecycle events dropped under
// backpressure.
func (c *Client) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

// Close stops the event dispatcher after draining buffered events. The client
// must not be used afterwards.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.events.Close()
}

// renewSession is the coordinator's upstream call: one refresh round trip
// presenting the current credential, yielding the renewed session. The
// coordinator owns the write-back; this function must not touch the store.
func (c *Client) renewSession(ctx context.Context, current *session.Session) (*session.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+current.Credential)
	c.decorate(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.emit(ctx, Event{Type: EventRefreshFailed, UserID: current.Identity.ID, Error: err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.emit(ctx, Event{Type: EventRefreshFailed, UserID: current.Identity.ID, Error: fmt.Sprintf("refresh status %d", resp.StatusCode)})
		return nil, fmt.Errorf("%w: refresh status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var payload refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode refresh response: %v", ErrRefreshFailed, err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing access token", ErrRefreshFailed)
	}

	now := time.Now()
	next := *current
	next.Credential = payload.AccessToken
	next.Generation = current.Generation + 1
	next.SchemaVersion = session.CurrentSchemaVersion
	next.IssuedAt = now.Unix()
	next.ExpiresAt = token.ExpiryOf(payload.AccessToken, now, c.config.Token.FallbackTTL).Unix()

	c.emit(ctx, Event{Type: EventRefreshed, UserID: next.Identity.ID, Success: true})

	return &next, nil
}

// teardown clears the session and reports it. Invoked by the request pipeline
// when authentication is unrecoverable; the registered handler and event sink
// are the only outward signals. No navigation happens here.
func (c *Client) teardown(ctx context.Context, cause error) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("session clear failed during teardown")
	}

	c.metrics.Inc(MetricSessionTeardown)
	c.emit(ctx, Event{Type: EventSessionTeardown, Error: cause.Error()})
	c.log.Warn().Err(cause).Msg("session torn down")

	if c.onSessionExpired != nil {
		c.onSessionExpired(cause)
	}
}

func (c *Client) decorate(ctx context.Context, req *http.Request) {
	req.Header.Set("X-Request-ID", ensureRequestID(ctx))
	if c.config.HTTP.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.HTTP.UserAgent)
	}
}

func (c *Client) emit(ctx context.Context, event Event) {
	if c.events == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.events.Emit(ctx, event)
}
