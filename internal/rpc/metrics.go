package rpc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics live on a private registry so the daemon exposes only its own
// series plus the standard process and Go collectors.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	pending  prometheus.GaugeFunc
	limited  prometheus.Counter
}

func newMetrics(pendingCount func() float64) *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certen_vault",
			Name:      "rpc_requests_total",
			Help:      "RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "certen_vault",
			Name:      "rpc_request_duration_seconds",
			Help:      "RPC request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		pending: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "certen_vault",
			Name:      "pending_sign_requests",
			Help:      "Sign requests currently awaiting approval.",
		}, pendingCount),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "certen_vault",
			Name:      "rpc_rate_limited_total",
			Help:      "Requests dropped by the rate limiter.",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.pending, m.limited)
	return m
}

func (m *metrics) observe(method, outcome string, seconds float64) {
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(seconds)
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
