package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector counts requests for the JSON /metrics summary and exports
// per-route Prometheus series.
type MetricsCollector struct {
	requests atomic.Int64
	errors   atomic.Int64

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetricsCollector registers the HTTP series on reg under namespace.
func NewMetricsCollector(namespace string, reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RequestCount returns the number of requests served so far.
func (mc *MetricsCollector) RequestCount() int64 { return mc.requests.Load() }

// ErrorCount is the number of 4xx and 5xx responses.
func (mc *MetricsCollector) ErrorCount() int64 { return mc.errors.Load() }

// Middleware counts and times every request.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mc.requests.Add(1)

		rw := newStatusRecorder(w)
		next.ServeHTTP(rw, r)

		if rw.status >= 400 {
			mc.errors.Add(1)
		}

		route := routePattern(r)
		mc.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		mc.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
