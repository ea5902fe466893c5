// Package sinks implements concrete progress consumers: structured logging,
// Prometheus metrics, Pub/Sub fan-out, and an archive of finished runs. Each
// sink satisfies progress.Sink and is safe for repeated Consume/Close cycles.
package sinks
