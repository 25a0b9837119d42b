// Package otel registers client metrics as OpenTelemetry observable
// instruments. Values are read from a snapshot inside the meter callback.
//
// Histograms are flattened into cumulative per-bucket gauges plus a count
// gauge so the series line up with the Prometheus exporter.
package otel
