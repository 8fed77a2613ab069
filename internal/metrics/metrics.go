// Package metrics holds the Prometheus collectors exported on /metrics.
//
// Remote text-generation:
//   - llm_requests_total{provider,outcome}  outcome: success, failure, rejected
//   - llm_request_duration_seconds{provider}
//   - circuit_breaker_state{name}           0=closed, 1=half-open, 2=open
//
// Strategies:
//   - recommendation_fallbacks_total{reason}
//   - chat_replies_total{strategy,outcome}
//
// HTTP:
//   - http_requests_total{method,route,status}
//   - http_request_duration_seconds{method,route}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Remote text-generation requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Remote text-generation latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	RecommendationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_fallbacks_total",
			Help: "Remote recommendation batches replaced by fixture records",
		},
		[]string{"reason"},
	)

	ChatReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Chat replies by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// RecordLLMRequest counts one remote call and observes its latency.
func RecordLLMRequest(provider, outcome string, d time.Duration) {
	LLMRequests.WithLabelValues(provider, outcome).Inc()
	if outcome != "rejected" {
		LLMRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
