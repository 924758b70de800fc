package goAuthClient

import (
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/goAuthClient/token"
)

// Config defines a public type used by goAuthClient APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the backend API root, e.g. "https://api.example.com".
	BaseURL string

	HTTP    HTTPConfig
	Token   TokenConfig
	Session SessionConfig
	Refresh RefreshConfig
	Events  EventConfig
	Metrics MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig defines a public type used by goAuthClient APIs.
//
// HTTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HTTPConfig struct {
	// Timeout applies to the login and refresh calls the client makes itself.
	// Caller-constructed requests keep their own deadlines.
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by goAuthClient APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	// ValidityMargin is the safety buffer subtracted from credential expiry so
	// renewal happens before the server would reject the token.
	ValidityMargin time.Duration
	// FallbackTTL is the assumed credential lifetime when the backend supplies
	// no expiry of its own.
	FallbackTTL time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goAuthClient APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	// Slot names the session within the prefix; processes sharing a Redis but
	// holding independent sessions use distinct slots.
	Slot string
	// ExpiryGrace keeps the stored session readable past credential expiry so
	// startup recovery can still refresh it.
	ExpiryGrace time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by goAuthClient APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// ThrottleEnabled bounds how often new single-flight cycles may start.
	// Joining an in-flight cycle is never throttled.
	ThrottleEnabled  bool
	ThrottleInterval time.Duration
	ThrottleBurst    int
}

/*
====================================
EVENT CONFIG
====================================
*/

// EventConfig defines a public type used by goAuthClient APIs.
//
// EventConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events under backpressure instead of blocking lifecycle
	// operations; drops are counted and exported.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goAuthClient APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when none is supplied to the
// [Builder]. BaseURL has no default and must be set.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   15 * time.Second,
			UserAgent: "goAuthClient",
		},
		Token: TokenConfig{
			ValidityMargin: token.DefaultValidityMargin,
			FallbackTTL:    time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "acs",
			Slot:        "current",
			ExpiryGrace: 7 * 24 * time.Hour,
		},
		Refresh: RefreshConfig{
			ThrottleEnabled:  false,
			ThrottleInterval: time.Second,
			ThrottleBurst:    1,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func defaultConfig() Config {
	return DefaultConfig()
}

// Validate checks the configuration for internally inconsistent or unusable
// values. Build rejects a config that fails validation.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("BaseURL must be an absolute URL")
	}
	if c.Token.ValidityMargin < 0 {
		return errors.New("Token.ValidityMargin must not be negative")
	}
	if c.Token.FallbackTTL <= 0 {
		return errors.New("Token.FallbackTTL must be positive")
	}
	if c.Token.ValidityMargin >= c.Token.FallbackTTL {
		return errors.New("Token.ValidityMargin must be below Token.FallbackTTL")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix required")
	}
	if c.Session.ExpiryGrace < 0 {
		return errors.New("Session.ExpiryGrace must not be negative")
	}
	if c.Refresh.ThrottleEnabled {
		if c.Refresh.ThrottleInterval <= 0 {
			return errors.New("Refresh.ThrottleInterval must be positive when throttling")
		}
		if c.Refresh.ThrottleBurst <= 0 {
			return errors.New("Refresh.ThrottleBurst must be positive when throttling")
		}
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be positive when events are enabled")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP.Timeout must not be negative")
	}
	return nil
}

// cloneConfig exists so a caller mutating its Config after Build cannot reach
// into the client. The struct holds no reference types today; keep the copy
// point anyway.
func cloneConfig(cfg Config) Config {
	return cfg
}
