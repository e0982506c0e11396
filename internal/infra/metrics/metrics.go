// Package metrics holds the Prometheus collectors for credential and token
// operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"

	ResultOK      = "ok"
	ResultExpired = "expired"
	ResultInvalid = "invalid"
	ResultRevoked = "revoked"
)

type Metrics struct {
	registry *prometheus.Registry

	tokensIssued  *prometheus.CounterVec
	verifications *prometheus.CounterVec
	hashDuration  *prometheus.HistogramVec
	hashInFlight  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "tokens_issued_total",
			Help:      "Signed tokens issued, by kind.",
		}, []string{"kind"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_verifications_total",
			Help:      "Token verifications, by kind and result.",
		}, []string{"kind", "result"}),
		hashDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "password_hash_seconds",
			Help:      "Time spent hashing or verifying passwords.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		hashInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auth",
			Name:      "password_hash_in_flight",
			Help:      "Password operations currently holding a hashing slot.",
		}),
	}
	m.registry.MustRegister(
		m.tokensIssued,
		m.verifications,
		m.hashDuration,
		m.hashInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry lets other subsystems (the gRPC interceptors) share the same endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) TokenVerified(kind, result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveHash(op string, started time.Time) {
	if m == nil {
		return
	}
	m.hashDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) HashStarted() {
	if m == nil {
		return
	}
	m.hashInFlight.Inc()
}

func (m *Metrics) HashFinished() {
	if m == nil {
		return
	}
	m.hashInFlight.Dec()
}
