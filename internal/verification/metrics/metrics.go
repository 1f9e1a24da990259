// Package metrics exposes the verification lifecycle counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the verification context's instruments. Registered once
// against a registry so tests can use isolated registries.
type Metrics struct {
	Created             prometheus.Counter
	DocumentsSubmitted  prometheus.Counter
	OrdersCreated       prometheus.Counter
	PaymentsVerified    prometheus.Counter
	SignatureRejections prometheus.Counter
	OTPRequests         prometheus.Counter
	CooldownHits        prometheus.Counter
	Verdicts            *prometheus.CounterVec
	UpstreamFailures    *prometheus.CounterVec
	ConfirmDuration     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_created_total",
			Help: "Verifications created.",
		}),
		DocumentsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_documents_submitted_total",
			Help: "Accepted document submissions.",
		}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_payment_orders_total",
			Help: "Payment orders created at the gateway.",
		}),
		PaymentsVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_payments_verified_total",
			Help: "Payments accepted after signature verification.",
		}),
		SignatureRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_payment_signature_rejections_total",
			Help: "Payment callbacks rejected for a bad signature.",
		}),
		OTPRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_otp_requests_total",
			Help: "OTP sends accepted by the identity authority.",
		}),
		CooldownHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_otp_cooldown_hits_total",
			Help: "OTP resends refused because the cooldown was active.",
		}),
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_verdicts_total",
			Help: "Confirmation outcomes by terminal status.",
		}, []string{"status"}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_upstream_failures_total",
			Help: "Collaborator calls that failed or timed out.",
		}, []string{"collaborator"}),
		ConfirmDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "verification_confirm_duration_seconds",
			Help:    "End-to-end duration of the confirmation step.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry. Test helper.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
