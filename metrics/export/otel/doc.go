// Package otel provides OpenTelemetry metric exporter bindings for storefront
// auth core counters.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each core
// metric. A single callback reads [shopauth.Core.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate core state.
package otel
