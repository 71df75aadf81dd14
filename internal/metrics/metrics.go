package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request kinds served by the bridge.
const (
	KindHLS     = "hls"
	KindDASH    = "dash"
	KindSegment = "segment"
	KindFile    = "file"
)

// Metrics holds Prometheus counters and gauges for the bridge. A nil
// *Metrics records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	servedTotal       *prometheus.CounterVec
	notSupportedTotal *prometheus.CounterVec
	streamedBytes     prometheus.Counter
	activeSinks       prometheus.Gauge
	activeConnections prometheus.Gauge
}

// New creates and registers Prometheus metrics for the bridge.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsbridge_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsbridge_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	servedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsbridge_served_total",
		Help: "Total number of successful responses by kind",
	}, []string{"kind"})
	notSupportedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsbridge_not_supported_total",
		Help: "Total number of not supported responses by reason",
	}, []string{"reason"})
	streamedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsbridge_streamed_bytes_total",
		Help: "Total number of response body bytes streamed",
	})
	activeSinks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hlsbridge_active_sinks",
		Help: "Number of response bodies currently being streamed",
	})
	activeConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hlsbridge_active_connections",
		Help: "Number of client connections not yet destroyed",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		servedTotal,
		notSupportedTotal,
		streamedBytes,
		activeSinks,
		activeConnections,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		servedTotal:       servedTotal,
		notSupportedTotal: notSupportedTotal,
		streamedBytes:     streamedBytes,
		activeSinks:       activeSinks,
		activeConnections: activeConnections,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

func (m *Metrics) IncServed(kind string) {
	if m == nil {
		return
	}
	m.servedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncNotSupported(reason string) {
	if m == nil {
		return
	}
	m.notSupportedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddStreamedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.streamedBytes.Add(float64(n))
}

func (m *Metrics) SinkStarted() {
	if m == nil {
		return
	}
	m.activeSinks.Inc()
}

func (m *Metrics) SinkStopped() {
	if m == nil {
		return
	}
	m.activeSinks.Dec()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
