// Package otel publishes guard metrics as OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per guard counter and
// Int64ObservableGauge instruments per histogram bucket. A single callback reads
// [loginguard.Guard.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate guard state.
package otel
