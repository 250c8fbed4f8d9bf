package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal)
}

// result: applied | orphan | malformed | unconfigured | error
var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound gateway webhook deliveries, by gateway and processing result.",
	},
	[]string{"gateway", "result"},
)

func IncWebhookEvent(gateway, result string) {
	webhookEventsTotal.WithLabelValues(norm(gateway), norm(result)).Inc()
}
