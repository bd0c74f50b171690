// Package metrics defines the Prometheus collectors exposed by the relay
// and the handler that serves the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectedClients tracks the number of live WebSocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of currently connected chat clients.",
	})

	// ActiveRooms tracks the number of rooms with at least one member.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_rooms",
		Help: "Number of rooms with at least one member.",
	})

	// MessagesIngested counts chat messages that were persisted and broadcast.
	MessagesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_ingested_total",
		Help: "Total chat messages accepted by the ingest pipeline.",
	})

	// BroadcastFailures counts per-member delivery failures during fan-out.
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_failures_total",
		Help: "Total failed deliveries to individual room members.",
	})

	// IngestInFlight tracks ingest operations currently holding a
	// concurrency slot.
	IngestInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ingest_in_flight",
		Help: "Ingest operations currently in flight.",
	})

	// HistoryRequests counts history lookups by outcome (ok, timeout, error).
	HistoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_history_requests_total",
		Help: "Total room history requests by outcome.",
	}, []string{"outcome"})

	// HTTPRequestDuration observes latency of HTTP requests by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: []float64{0.1, 0.3, 0.5, 0.7, 1, 3, 5, 7, 10},
	}, []string{"method", "route", "code"})
)

// Handler returns the Prometheus scrape handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
