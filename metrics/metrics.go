// Package metrics exposes Prometheus counters for the operations the
// group actually cares about tracking week over week, plus request
// latency for the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SettlementsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_created_total",
		Help: "Number of weekly settlements finalized.",
	})

	SettlementsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_deleted_total",
		Help: "Number of settlements deleted (debt reversed).",
	})

	AdvancesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advances_recorded_total",
		Help: "Number of member advances recorded.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency per method and status code.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		requestDuration.
			WithLabelValues(r.Method, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
