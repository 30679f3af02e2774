// Package prometheus renders guard metrics in the Prometheus text exposition
// format.
//
// [NewPrometheusExporter] wraps a [loginguard.Guard] and exposes an
// [net/http.Handler]. Counters are named loginguard_*_total; the single
// histogram is loginguard_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in a global registry. Callers mount the Handler.
//   - Mutate guard state.
package prometheus
