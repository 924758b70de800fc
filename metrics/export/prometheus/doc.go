// Package prometheus provides Prometheus collectors for goAuthClient metrics.
//
// [NewPrometheusExporter] accepts a [goAuthClient.Client] and exposes an [http.Handler]
// that renders all goAuthClient counters and histograms in Prometheus text exposition
// format. Counter names are prefixed goauthclient_*_total; the single histogram is
// goauthclient_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate client state.
package prometheus
