// Package metrics exposes Prometheus instrumentation for operations, engine
// invocations and HTTP requests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives measurements from the service.
type Recorder interface {
	ObserveOperation(operation, status string, elapsed time.Duration)
	ObserveInvocation(name, status string, elapsed time.Duration)
	ObserveRequest(method, route, status string, elapsed time.Duration)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveOperation(string, string, time.Duration)       {}
func (Noop) ObserveInvocation(string, string, time.Duration)      {}
func (Noop) ObserveRequest(string, string, string, time.Duration) {}

// mediaBuckets cover engine runs from sub-second trims to ten-minute merges.
var mediaBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Prom implements Recorder backed by Prometheus collectors.
type Prom struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	invocations       *prometheus.CounterVec
	invocationLatency *prometheus.HistogramVec
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
}

// NewProm creates the collectors and registers them with reg.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Media operations by kind and status",
		}, []string{"operation", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Media operation duration by kind",
			Buckets:   mediaBuckets,
		}, []string{"operation"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_invocations_total",
			Help:      "Engine processes by invocation and status",
		}, []string{"invocation", "status"}),
		invocationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_invocation_duration_seconds",
			Help:      "Engine process wall time by invocation",
			Buckets:   mediaBuckets,
		}, []string{"invocation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		p.operations, p.operationDuration,
		p.invocations, p.invocationLatency,
		p.requests, p.requestLatency,
	)
	return p
}

func (p *Prom) ObserveOperation(operation, status string, elapsed time.Duration) {
	p.operations.WithLabelValues(operation, status).Inc()
	p.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (p *Prom) ObserveInvocation(name, status string, elapsed time.Duration) {
	p.invocations.WithLabelValues(name, status).Inc()
	p.invocationLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (p *Prom) ObserveRequest(method, route, status string, elapsed time.Duration) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns an HTTP handler for /metrics serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
