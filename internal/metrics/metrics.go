// Package metrics exposes Prometheus collectors for the OTP and issuance
// workflow. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/idmint/idmint/internal/apperr"
)

const namespace = "idmint"

// Metrics groups the workflow collectors.
type Metrics struct {
	otpRequests      *prometheus.CounterVec
	otpVerifications *prometheus.CounterVec
	issuances        *prometheus.CounterVec
	mintDuration     *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		otpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_requests_total",
			Help:      "OTP requests by identity category and outcome.",
		}, []string{"category", "outcome"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "OTP verifications by outcome.",
		}, []string{"outcome"}),
		issuances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuances_total",
			Help:      "Identity issuance attempts by category and outcome.",
		}, []string{"category", "outcome"}),
		mintDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mint_duration_seconds",
			Help:      "Wall time of external mint invocations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.otpRequests, m.otpVerifications, m.issuances, m.mintDuration)
	return m
}

// OTPRequested counts one OTP request.
func (m *Metrics) OTPRequested(category string, err error) {
	if m == nil {
		return
	}
	m.otpRequests.WithLabelValues(category, Outcome(err)).Inc()
}

// OTPVerified counts one OTP verification.
func (m *Metrics) OTPVerified(err error) {
	if m == nil {
		return
	}
	m.otpVerifications.WithLabelValues(Outcome(err)).Inc()
}

// Issued counts one issuance attempt.
func (m *Metrics) Issued(category string, err error) {
	if m == nil {
		return
	}
	m.issuances.WithLabelValues(category, Outcome(err)).Inc()
}

// ObserveMint records how long a mint invocation took.
func (m *Metrics) ObserveMint(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.mintDuration.WithLabelValues(Outcome(err)).Observe(d.Seconds())
}

var outcomeByKind = map[error]string{
	apperr.ErrInvalidInput:      "invalid_input",
	apperr.ErrConflict:          "conflict",
	apperr.ErrNotFound:          "not_found",
	apperr.ErrInvalidCode:       "invalid_code",
	apperr.ErrDeliveryFailed:    "delivery_failed",
	apperr.ErrConfiguration:     "configuration_error",
	apperr.ErrIssuanceExecution: "issuance_failed",
	apperr.ErrChainRead:         "chain_read_failed",
}

// Outcome turns an error into a bounded label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if label, ok := outcomeByKind[apperr.KindOf(err)]; ok {
		return label
	}
	return "error"
}
