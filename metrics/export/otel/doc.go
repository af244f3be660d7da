// Package otel binds engine metrics to an OpenTelemetry Meter.
//
// Each counter family becomes one Int64ObservableCounter whose series carry
// an "outcome" attribute. Each latency histogram becomes a "_bucket" gauge
// with an "le" attribute plus a "_count" gauge. One callback reads the engine
// snapshot per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
