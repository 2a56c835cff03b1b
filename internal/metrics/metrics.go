package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the member service
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Business Metrics
	MembershipsProcessedTotal prometheus.CounterVec
	WaiversProcessedTotal     prometheus.CounterVec
	SignatureFailuresTotal    prometheus.Counter
	NotificationFailuresTotal prometheus.Counter
	VerifiedEmailLookupsTotal prometheus.CounterVec
}

// Outcome labels for the business counters.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "member_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "member_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		MembershipsProcessedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_memberships_processed_total",
				Help: "Membership payment events by outcome",
			},
			[]string{"outcome"},
		),
		WaiversProcessedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_waivers_processed_total",
				Help: "Waiver completion events by outcome",
			},
			[]string{"outcome"},
		),
		SignatureFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "member_signature_failures_total",
				Help: "Payment notifications rejected for a bad or missing signature",
			},
		),
		NotificationFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "member_notification_failures_total",
				Help: "Best-effort membership-cache notifications that failed",
			},
		),
		VerifiedEmailLookupsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_verified_email_lookups_total",
				Help: "Identity provider lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
	}
}
