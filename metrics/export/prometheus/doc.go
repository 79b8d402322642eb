// Package prometheus provides Prometheus collectors for storefront auth core metrics.
//
// [NewPrometheusExporter] accepts a [shopauth.Core] and exposes an [http.Handler]
// that renders all counters in Prometheus text exposition format. Counter names
// are prefixed shopauth_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate core state.
package prometheus
