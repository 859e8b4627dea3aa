package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vengage_reminders_total",
			Help: "Reminder outcomes by kind and result",
		},
		[]string{"kind", "result"}, // pre_open|open|support , sent|skipped|error
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vengage_webhook_events_total",
			Help: "Inbound webhook events by outcome",
		},
		[]string{"result"}, // ok|duplicate|invalid|forbidden|error
	)

	FlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vengage_flows_total",
			Help: "Classified inbound messages by flow",
		},
		[]string{"flow"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RemindersTotal,
		WebhookEventsTotal,
		FlowsTotal,
	)
}
