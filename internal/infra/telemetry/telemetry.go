package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus instruments exposed by the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	TokensIssued     *prometheus.CounterVec
	TokensRevoked    prometheus.Counter
	ValidationsTotal *prometheus.CounterVec
}

// NewMetrics registers the service metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "tokens_issued_total",
			Help:      "Tokens issued, labelled by kind",
		}, []string{"kind"}),
		TokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "tokens_revoked_total",
			Help:      "Tokens explicitly revoked",
		}),
		ValidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_validations_total",
			Help:      "Token validation outcomes",
		}, []string{"outcome"}),
	}
}
