package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Render metrics
	RendersTotal    *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	BlocksTotal     *prometheus.CounterVec
	BlockDuration   prometheus.Histogram
	MalformedBlocks prometheus.Counter

	// Document metrics
	DocumentCache *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals for the health endpoint.
type Snapshot struct {
	TotalRenders      int64
	FailedRenders     int64
	BlockFailures     int64
	ActiveConnections int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprop_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netprop_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netprop_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "route"},
		),

		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprop_renders_total",
				Help: "Total number of document renders by final status",
			},
			[]string{"status"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "netprop_render_duration_seconds",
				Help:    "Document render duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
			},
		),
		BlocksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprop_script_blocks_total",
				Help: "Total number of script block executions by outcome",
			},
			[]string{"outcome"},
		),
		BlockDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "netprop_script_block_duration_seconds",
				Help:    "Script block execution duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		MalformedBlocks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netprop_script_blocks_malformed_total",
				Help: "Total number of unterminated script blocks left in residual markup",
			},
		),

		DocumentCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprop_document_cache_total",
				Help: "Document cache lookups by result",
			},
			[]string{"result"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "netprop_ws_connections",
				Help: "Number of open broadcast channel connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprop_ws_messages_total",
				Help: "Total number of broadcast channel messages",
			},
			[]string{"direction"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "netprop_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

// RecordRender records the outcome of one document render.
func (m *Metrics) RecordRender(status string, duration time.Duration, failedBlocks int) {
	m.RendersTotal.WithLabelValues(status).Inc()
	m.RenderDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRenders++
	if status != "success" {
		m.snapshot.FailedRenders++
	}
	m.snapshot.BlockFailures += int64(failedBlocks)
	m.mu.Unlock()
}

// RecordBlock records one script block execution.
func (m *Metrics) RecordBlock(outcome string, duration time.Duration) {
	m.BlocksTotal.WithLabelValues(outcome).Inc()
	m.BlockDuration.Observe(duration.Seconds())
}

// IncMalformedBlocks counts an unterminated script block.
func (m *Metrics) IncMalformedBlocks() {
	m.MalformedBlocks.Inc()
}

// RecordCacheLookup records a document cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.DocumentCache.WithLabelValues("hit").Inc()
		return
	}
	m.DocumentCache.WithLabelValues("miss").Inc()
}

// RecordWSMessage records a broadcast channel message
func (m *Metrics) RecordWSMessage(direction string) {
	m.WSMessages.WithLabelValues(direction).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Uptime returns the time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
