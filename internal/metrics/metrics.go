// Package metrics exposes Prometheus collectors for the drawing server.
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
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platdraw",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "platdraw",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Drawing lifecycle
	BoundariesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "platdraw",
		Subsystem: "draw",
		Name:      "boundaries_committed_total",
		Help:      "Boundaries rendered on a host map",
	})

	GesturesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platdraw",
		Subsystem: "draw",
		Name:      "gestures_discarded_total",
		Help:      "Freehand gestures dropped before producing a boundary",
	}, []string{"reason"})

	ViewCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "platdraw",
		Subsystem: "draw",
		Name:      "view_corrections_total",
		Help:      "Viewport drifts reverted by the stabilizer",
	})

	OverlayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "platdraw",
		Subsystem: "draw",
		Name:      "overlay_failures_total",
		Help:      "Boundary commits rolled back after an overlay failure",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "platdraw",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Open drawing sessions",
	})

	// Listings
	ListingsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platdraw",
		Subsystem: "listings",
		Name:      "imported_total",
		Help:      "Listing records imported, by schema version",
	}, []string{"schema"})

	ListingSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "platdraw",
		Subsystem: "listings",
		Name:      "search_duration_seconds",
		Help:      "Duration of boundary listing searches",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

// DrawObserver feeds controller lifecycle events into the draw collectors.
type DrawObserver struct{}

func (DrawObserver) BoundaryCommitted() { BoundariesCommitted.Inc() }
func (DrawObserver) ViewCorrected()     { ViewCorrections.Inc() }
func (DrawObserver) OverlayFailed()     { OverlayFailures.Inc() }

func (DrawObserver) GestureDiscarded(reason string) {
	GesturesDiscarded.WithLabelValues(reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware records request metrics. The path label is the matched mux
// pattern so session IDs don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
