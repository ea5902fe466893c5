// Package api hosts the HTTP server, middleware, and handlers of the portal.
// Notable routes:
//   - POST /webhooks/status receives signed progress webhooks from the
//     generation workflow.
//   - GET /webhooks/status?clientId= and GET /status/{clientId} serve the
//     latest record, or the default record when nothing is stored.
//   - POST /generate validates the business form and triggers a run.
//   - POST /status/{clientId}/cancel requests cancellation of a run.
//   - GET /healthz, /readyz for health checks and GET /metrics for Prometheus.
package api
