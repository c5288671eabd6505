// Package prometheus exposes goClerk metrics through prometheus/client_golang.
//
// [NewPrometheusExporter] wraps an [goClerk.Engine] in a [prom.Collector] that
// reads a fresh snapshot on every scrape. Counter names are prefixed
// goclerk_*_total; the single histogram is goclerk_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Handler uses a
//     private registry; callers who want the default one call Register.
//   - Mutate engine state.
package prometheus
