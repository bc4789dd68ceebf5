// Package metrics exposes fleetguard's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetguard",
		Name:      "http_in_flight_requests",
		Help:      "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetguard",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetguard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Decisions counts authorization decisions by reason
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetguard",
			Name:      "authz_decisions_total",
			Help:      "Authorization decisions by reason.",
		},
		[]string{"reason"},
	)

	// AuditAppends counts persisted audit entries by action and outcome
	AuditAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetguard",
			Name:      "audit_appends_total",
			Help:      "Audit log entries written.",
		},
		[]string{"action", "outcome"},
	)

	// AuditPurged counts entries removed by the retention purge
	AuditPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetguard",
		Name:      "audit_purged_entries_total",
		Help:      "Audit log entries removed by retention purge.",
	})
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			Decisions,
			AuditAppends,
			AuditPurged,
		)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge. Paths are
// labelled with the matched mux route template to bound cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := routePath(r)
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
