package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmarket_orders_created_total",
		Help: "Number of orders accepted at checkout.",
	})

	TransitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmarket_order_transitions_total",
		Help: "Number of applied order status transitions.",
	}, []string{"to_status"})

	TransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmarket_order_transitions_rejected_total",
		Help: "Number of rejected order status transitions.",
	}, []string{"reason"})

	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmarket_version_conflicts_total",
		Help: "Number of optimistic concurrency conflicts on append.",
	})

	EventsProjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmarket_events_projected_total",
		Help: "Number of events applied to read models.",
	}, []string{"event_type"})

	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmarket_notifications_delivered_total",
		Help: "Number of notifications delivered to subscribers.",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmarket_notifications_dropped_total",
		Help: "Number of notifications dropped due to slow subscribers.",
	})

	ProgressWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmarket_progress_writes_total",
		Help: "Number of coalesced progress writes.",
	})
)

// Handler exposes the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
