package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsCreatedTotal,
		paymentTransitionsTotal,
		paymentTransitionsSkippedTotal,
		paymentsRevenueCents,
	)
}

var (
	paymentsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Payments created at checkout, by gateway and method.",
		},
		[]string{"gateway", "method"},
	)

	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Applied payment status transitions, by resulting status.",
		},
		[]string{"status"},
	)

	// reason: duplicate | stale
	paymentTransitionsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_skipped_total",
			Help: "Candidate status observations not applied, by reason.",
		},
		[]string{"reason"},
	)

	paymentsRevenueCents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_revenue_cents_total",
			Help: "Total value of approved payments, in cents.",
		},
	)
)

func IncPaymentCreated(gateway, method string) {
	paymentsCreatedTotal.WithLabelValues(norm(gateway), norm(method)).Inc()
}

func IncPaymentTransition(status string) {
	paymentTransitionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncTransitionSkipped(reason string) {
	paymentTransitionsSkippedTotal.WithLabelValues(norm(reason)).Inc()
}

func AddRevenueCents(amount int64) {
	paymentsRevenueCents.Add(float64(amount))
}
