// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces used to report generation status transitions. Accepted webhooks
// emit events; the hub batches them on a background goroutine and fans them
// out to pluggable sinks such as Prometheus metrics, Pub/Sub, or an archive.
package progress
