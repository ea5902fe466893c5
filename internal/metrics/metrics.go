// Package metrics exposes Prometheus collectors for the portal service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	webhooksTotal              *prometheus.CounterVec
	signatureFailuresTotal     *prometheus.CounterVec
	statusQueriesTotal         *prometheus.CounterVec
	dispatchRequestsTotal      *prometheus.CounterVec
	rateLimitedTotal           *prometheus.CounterVec
	sweptRecordsTotal          prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route, and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		webhooksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_webhooks_total",
				Help: "Inbound status webhooks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		signatureFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_webhook_signature_failures_total",
				Help: "Webhooks rejected by signature verification, labeled by reason.",
			},
			[]string{"reason"},
		)

		statusQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_status_queries_total",
				Help: "Status queries, labeled by whether a stored record or the default was returned.",
			},
			[]string{"result"},
		)

		dispatchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_dispatch_requests_total",
				Help: "Repository dispatch calls, labeled by event type and result.",
			},
			[]string{"event_type", "result"},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_rate_limited_requests_total",
				Help: "Requests rejected by the rate limiter, labeled by route.",
			},
			[]string{"route"},
		)

		sweptRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_swept_records_total",
				Help: "Expired status records removed by the sweeper.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveWebhook counts a webhook by outcome (accepted, unauthorized, invalid, error).
func ObserveWebhook(outcome string) {
	webhooksTotal.WithLabelValues(outcome).Inc()
}

// ObserveSignatureFailure counts a rejected signature.
func ObserveSignatureFailure(reason string) {
	signatureFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveStatusQuery counts a status read; result is "stored" or "default".
func ObserveStatusQuery(result string) {
	statusQueriesTotal.WithLabelValues(result).Inc()
}

// ObserveDispatch counts a repository dispatch call.
func ObserveDispatch(eventType, result string) {
	dispatchRequestsTotal.WithLabelValues(eventType, result).Inc()
}

// ObserveRateLimited counts a request rejected by the limiter.
func ObserveRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}

// ObserveSweep adds removed records to the sweeper counter.
func ObserveSweep(removed int) {
	if removed > 0 {
		sweptRecordsTotal.Add(float64(removed))
	}
}
