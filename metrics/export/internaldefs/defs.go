package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef defines a public type used by goAuthClient APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goAuthClient APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session client.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauthclient_login_success_total", Help: "Successful login attempts."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauthclient_login_failure_total", Help: "Failed login attempts."},
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Successful refresh cycles."},
	{ID: goAuthClient.MetricRefreshFailure, Name: "goauthclient_refresh_failure_total", Help: "Failed refresh cycles."},
	{ID: goAuthClient.MetricRefreshCollapsed, Name: "goauthclient_refresh_collapsed_total", Help: "Callers that joined an in-flight refresh cycle instead of starting one."},
	{ID: goAuthClient.MetricRefreshThrottled, Name: "goauthclient_refresh_throttled_total", Help: "Refresh cycles denied by the storm throttle."},
	{ID: goAuthClient.MetricRequestRetried, Name: "goauthclient_request_retried_total", Help: "Requests redispatched once after a server-side authorization rejection."},
	{ID: goAuthClient.MetricAuthFailure, Name: "goauthclient_auth_failure_total", Help: "Unrecoverable authentication failures that tore the session down."},
	{ID: goAuthClient.MetricTransportFailure, Name: "goauthclient_transport_failure_total", Help: "Requests that failed at the network layer."},
	{ID: goAuthClient.MetricSessionAdopted, Name: "goauthclient_session_adopted_total", Help: "Stored sessions adopted at startup."},
	{ID: goAuthClient.MetricSessionTeardown, Name: "goauthclient_session_teardown_total", Help: "Session teardowns."},
	{ID: goAuthClient.MetricSessionCorrupt, Name: "goauthclient_session_corrupt_total", Help: "Stored session blobs discarded as corrupt."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "Logout operations."},
}

// HistogramDefs is an exported constant or variable used by the session client.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Refresh cycle latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session client.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session client.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies a raw snapshot slice into the fixed bucket layout,
// tolerating short or missing slices.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus and OTel consumers expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
