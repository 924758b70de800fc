package goAuthClient

import (
	"errors"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/session"
)

// Builder defines a public type used by goAuthClient APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	httpClient *http.Client
	logger     *zerolog.Logger
	eventSink  EventSink

	onSessionExpired func(error)

	built bool
}

// New returns a [Builder] seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the backend API root.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithRedis sets the Redis client backing session persistence. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the HTTP client used for all backend traffic. Defaults to
// a client with Config.HTTP.Timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithEventSink sets the sink receiving lifecycle events.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithSessionExpiredHandler registers the callback invoked after session
// teardown. The presentation layer typically redirects to login from here; the
// client itself performs no navigation.
func (b *Builder) WithSessionExpiredHandler(handler func(error)) *Builder {
	b.onSessionExpired = handler
	return b
}

// WithMetricsEnabled toggles counter recording.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build assembles the [Client]. The builder is single-use.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if b.logger != nil {
		log = *b.logger
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}

	// -------- SESSION STORE --------
	store := session.NewStore(
		b.redis,
		cfg.Session.RedisPrefix,
		cfg.Session.Slot,
		cfg.Session.ExpiryGrace,
	)

	client := &Client{
		config:           cfg,
		log:              log,
		http:             httpClient,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		store:            store,
		metrics:          NewMetrics(cfg.Metrics),
		onSessionExpired: b.onSessionExpired,
	}

	// -------- REFRESH COORDINATOR --------
	var limiter *rate.Limiter
	if cfg.Refresh.ThrottleEnabled {
		limiter = rate.NewLimiter(rate.Every(cfg.Refresh.ThrottleInterval), cfg.Refresh.ThrottleBurst)
	}

	client.coordinator = refresh.NewCoordinator(store, client.renewSession, refresh.Options{
		Limiter:  limiter,
		Logger:   &log,
		Observer: coordinatorObserver{metrics: client.metrics},
	})

	client.events = newEventDispatcher(cfg.Events, b.eventSink)

	b.built = true

	return client, nil
}
