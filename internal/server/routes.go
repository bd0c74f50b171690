// Package server wires HTTP handlers into a router for the chat relay.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Tyrowin/roomchat/internal/metrics"
)

// SetupRoutes configures and returns the relay's HTTP router: health check,
// WebSocket endpoint, Prometheus scrape endpoint, and the test page.
func SetupRoutes(hub *Hub, ingest *IngestPipeline, history *HistoryService) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestDurationMiddleware)
	router.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", WebSocketHandler(hub, ingest, history))
	router.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return router
}

// statusRecorder captures the response status code for metric labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestDurationMiddleware observes request latency per route. The
// WebSocket endpoint is skipped: its connections are hijacked and live for
// the whole session, so a duration sample would be meaningless and the
// wrapped writer would break the upgrade.
func requestDurationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.status)).
			Observe(time.Since(start).Seconds())
	})
}
