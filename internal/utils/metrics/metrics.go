package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Referral metrics
	ReferralValidationsTotal *prometheus.CounterVec
	ReferralRedemptionsTotal *prometheus.CounterVec

	// Subscription metrics
	ProvisioningTotal    *prometheus.CounterVec
	ProvisioningDuration *prometheus.HistogramVec

	// Billing provider metrics
	BillingCallDuration *prometheus.HistogramVec
	BillingCircuitState *prometheus.GaugeVec

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered on reg.
// A nil reg registers on the default Prometheus registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "flox"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		ReferralValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "referral",
				Name:      "validations_total",
				Help:      "Total number of referral code validations",
			},
			[]string{"result"}, // valid, not_found, inactive, expired, usage_limit_reached
		),
		ReferralRedemptionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "referral",
				Name:      "redemptions_total",
				Help:      "Total number of referral code redemption attempts",
			},
			[]string{"result"},
		),

		ProvisioningTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "provisioning_total",
				Help:      "Total number of subscription provisioning attempts",
			},
			[]string{"plan", "result"},
		),
		ProvisioningDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "provisioning_duration_seconds",
				Help:      "Subscription provisioning duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"plan"},
		),

		BillingCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "call_duration_seconds",
				Help:      "Billing provider call duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"operation", "status"},
		),
		BillingCircuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "circuit_state",
				Help:      "Billing provider circuit state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Total number of billing webhook events",
			},
			[]string{"kind", "result"}, // result: applied, ignored, duplicate, failed
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordValidation records a referral validation outcome.
func (m *Metrics) RecordValidation(result string) {
	if m == nil {
		return
	}
	m.ReferralValidationsTotal.WithLabelValues(result).Inc()
}

// RecordRedemption records a referral redemption outcome.
func (m *Metrics) RecordRedemption(result string) {
	if m == nil {
		return
	}
	m.ReferralRedemptionsTotal.WithLabelValues(result).Inc()
}

// RecordProvisioning records a provisioning attempt.
func (m *Metrics) RecordProvisioning(plan, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProvisioningTotal.WithLabelValues(plan, result).Inc()
	m.ProvisioningDuration.WithLabelValues(plan).Observe(duration.Seconds())
}

// RecordBillingCall records a billing provider call.
func (m *Metrics) RecordBillingCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BillingCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// SetCircuitState sets the circuit state gauge of a billing provider.
func (m *Metrics) SetCircuitState(provider string, state int) {
	if m == nil {
		return
	}
	m.BillingCircuitState.WithLabelValues(provider).Set(float64(state))
}

// RecordWebhookEvent records a processed webhook event.
func (m *Metrics) RecordWebhookEvent(kind, result string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(kind, result).Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
