package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the dispatch pipeline metrics
type Collector struct {
	Dispatches           prometheus.Counter
	Matches              prometheus.Counter
	AlertsCreated        prometheus.Counter
	NotificationsCreated prometheus.Counter
	BroadcastFailures    prometheus.Counter
	PipelineFailures     *prometheus.CounterVec
	PipelineTerminations *prometheus.CounterVec
	EventsConsumed       prometheus.Counter
}

// NewCollector creates and registers the pipeline metrics
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "guestwatch_dispatches_total",
			Help: "Total watchlist dispatches triggered.",
		}),
		Matches: factory.NewCounter(prometheus.CounterOpts{
			Name: "guestwatch_watchlist_matches_total",
			Help: "Total dispatches that matched a watchlist entry.",
		}),
		AlertsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "guestwatch_alerts_created_total",
			Help: "Total alerts created by the dispatch pipeline.",
		}),
		NotificationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "guestwatch_notifications_created_total",
			Help: "Total notification rows created by the dispatch pipeline.",
		}),
		BroadcastFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "guestwatch_broadcast_failures_total",
			Help: "Total realtime broadcast emissions that failed.",
		}),
		PipelineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guestwatch_pipeline_failures_total",
			Help: "Dispatch pipeline failures by stage.",
		}, []string{"stage"}),
		PipelineTerminations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guestwatch_pipeline_terminations_total",
			Help: "Clean early pipeline terminations by cause.",
		}, []string{"cause"}),
		EventsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "guestwatch_events_consumed_total",
			Help: "Guest registration events consumed from Kafka.",
		}),
	}
}
