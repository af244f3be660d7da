// Package internaldefs holds the metric names shared by the Prometheus and
// OpenTelemetry exporters so both expose identical series.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
