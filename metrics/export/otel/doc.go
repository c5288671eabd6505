// Package otel provides OpenTelemetry metric exporter bindings for goClerk counters and
// histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter for each goClerk counter.
// Each latency histogram becomes three instruments: a cumulative "_bucket"
// gauge with one point per "le" bound, plus monotonic "_count" and "_sum"
// counters. A single callback reads [goClerk.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
