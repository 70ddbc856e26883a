// Package prometheus exposes goAuthClient metrics to Prometheus.
//
// [Collector] adapts a provider's snapshot to client_golang. [PrometheusExporter]
// wraps a private registry holding one and serves it through promhttp;
// applications that already run a registry register the Collector instead.
// Counter names are prefixed goauthclient_*_total; the single histogram is
// goauthclient_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the
//     Handler or register the Collector themselves.
//   - Mutate provider state.
package prometheus
