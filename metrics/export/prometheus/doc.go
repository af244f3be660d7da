// Package prometheus writes engine metrics in the Prometheus text exposition
// format without a client library registry.
//
// Counters are grouped in gdprauth_*_total families labelled by outcome, for
// example gdprauth_login_total{outcome="rate_limited"}. The latency
// histograms gdprauth_resolve_latency_seconds and
// gdprauth_refresh_latency_seconds expose buckets and a count.
//
// # What this package must NOT do
//
//   - Register anything in a global registry. Callers mount Handler.
//   - Mutate engine state.
package prometheus
