package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics for the operational endpoints.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Audit pipeline metrics.
var (
	auditBufferEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_buffer_entries",
		Help: "Audit entries currently buffered in memory.",
	})

	auditFlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_flush_total",
			Help: "Audit flush attempts by outcome.",
		},
		[]string{"outcome"},
	)

	auditFlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audit_flush_duration_seconds",
		Help:    "Audit flush latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	auditRequeuedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_requeued_entries_total",
		Help: "Audit entries requeued after a failed partition write.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		auditBufferEntries, auditFlushTotal, auditFlushDuration, auditRequeuedEntries,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetAuditBufferSize records the current in-memory buffer depth.
func SetAuditBufferSize(n int) {
	auditBufferEntries.Set(float64(n))
}

// ObserveAuditFlush records one flush attempt.
func ObserveAuditFlush(outcome string, d time.Duration) {
	auditFlushTotal.WithLabelValues(outcome).Inc()
	auditFlushDuration.Observe(d.Seconds())
}

// AddAuditRequeued counts entries put back into the buffer for retry.
func AddAuditRequeued(n int) {
	auditRequeuedEntries.Add(float64(n))
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath strips the query string so metric label cardinality
// stays bounded. The operational surface has no id-bearing routes.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
