package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	storeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_requests_total",
			Help: "Remote store calls by table, operation and outcome.",
		},
		[]string{"table", "operation", "outcome"},
	)

	storeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_request_duration_seconds",
			Help:    "Remote store call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "operation"},
	)

	authOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_outcomes_total",
			Help: "Authentication outcomes by stage and result.",
		},
		[]string{"stage", "result"},
	)

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections",
		Help: "Open realtime connections.",
	})

	registerOnce sync.Once
)

// Init registers all collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			storeRequestsTotal,
			storeRequestDuration,
			authOutcomesTotal,
			wsConnections,
		)
	})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStore records one remote store call
func ObserveStore(table, operation, outcome string, d time.Duration) {
	storeRequestsTotal.WithLabelValues(table, operation, outcome).Inc()
	storeRequestDuration.WithLabelValues(table, operation).Observe(d.Seconds())
}

// AuthOutcome counts an authentication decision
func AuthOutcome(stage, result string) {
	authOutcomesTotal.WithLabelValues(stage, result).Inc()
}

// ConnectionOpened and ConnectionClosed track realtime connections
func ConnectionOpened() { wsConnections.Inc() }
func ConnectionClosed() { wsConnections.Dec() }

// Instrument measures request count and latency per chi route pattern
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
