package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookCreditsGranted,
	)
}

var (
	// result: ok|bad_signature|bad_payload|error
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook deliveries by event name and result.",
		},
		[]string{"event", "result"},
	)

	webhookCreditsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_credits_granted_total",
			Help: "Credit grants applied through the webhook path (client verify never ran first).",
		},
	)
)

func IncWebhookEvent(event, result string) {
	webhookEventsTotal.WithLabelValues(norm(event), norm(result)).Inc()
}

func IncWebhookCreditGrant() { webhookCreditsGranted.Inc() }
