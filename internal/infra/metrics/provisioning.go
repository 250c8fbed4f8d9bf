package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(provisioningTotal)
}

// outcome: created | renewed | linked | failed
var provisioningTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provisioning_total",
		Help: "Account provisioning runs triggered by payment approval, by outcome.",
	},
	[]string{"outcome"},
)

func IncProvisioning(outcome string) {
	provisioningTotal.WithLabelValues(norm(outcome)).Inc()
}
