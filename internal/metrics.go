package internal

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. They live in a private
// registry so tests can build as many servers as they like.
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec
	movements  *prometheus.CounterVec
	units      *prometheus.CounterVec
	logins     *prometheus.CounterVec
	registry   *prometheus.Registry
}

var requestLabels = []string{"method", "path", "status"}

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reqTotal: counter("http_requests_total", "Total HTTP requests", requestLabels...),
		reqLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, requestLabels),
		movements: counter("envanter_movements_total", "Stock movements recorded, by type", "type"),
		units:     counter("envanter_movement_units_total", "Units moved in or out of stock", "type"),
		logins:    counter("envanter_logins_total", "Sign-in attempts, by result", "result"),
		registry:  prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.reqTotal, m.reqLatency, m.movements, m.units, m.logins)
	return m
}

// routeLabel prefers chi's matched pattern so /items/{id} stays one series.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// Middleware counts and times every request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{"method": r.Method, "path": routeLabel(r), "status": http.StatusText(rec.code)}
			m.reqTotal.With(labels).Inc()
			m.reqLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// RecordMovement counts a stored movement.
func (m *Metrics) RecordMovement(typ string, quantity int) {
	m.movements.WithLabelValues(typ).Inc()
	m.units.WithLabelValues(typ).Add(float64(quantity))
}

// RecordLogin counts a sign-in attempt; result is "success", "invalid" or "error".
func (m *Metrics) RecordLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	sr.code = http.StatusSwitchingProtocols
	return h.Hijack()
}
