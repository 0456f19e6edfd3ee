// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// upstream report calls.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "insights"

// Namespace prefixes every insights metric.
const Namespace = "insights"

// Call outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeExhausted   = "exhausted"
	OutcomePermanent   = "permanent"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCancelled   = "cancelled"
)

// Cache results used as the "result" label.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the upstream Prometheus collectors.
type Metrics struct {
	// Call metrics
	Calls       *prometheus.CounterVec
	CallLatency *prometheus.HistogramVec
	Attempts    prometheus.Counter
	Retries     prometheus.Counter

	// Breaker
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// Backpressure
	QueueDepth prometheus.Gauge
	InFlight   prometheus.Gauge

	// Sharing
	SharedCalls prometheus.Counter
	CacheLookup *prometheus.CounterVec
}

// Provider wraps telemetry providers. A nil *Provider records nothing.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics

	registry *prometheus.Registry
}

// NewProvider registers the collectors on reg and uses the global otel tracer.
func NewProvider(reg *prometheus.Registry) *Provider {
	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		registry: reg,
	}
}

// Registerer lets other components add collectors to the same registry.
func (p *Provider) Registerer() prometheus.Registerer {
	return p.registry
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func initMetrics(f promauto.Factory) *Metrics {
	m := &Metrics{}
	initCallMetrics(f, m)
	initBreakerMetrics(f, m)
	initBackpressureMetrics(f, m)
	initSharingMetrics(f, m)
	return m
}

func initCallMetrics(f promauto.Factory, m *Metrics) {
	m.Calls = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_calls_total",
		Help:      "Upstream report calls by final outcome",
	}, []string{"resource", "outcome"})

	m.CallLatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "upstream_call_duration_seconds",
		Help:      "Wall time of a report call including queueing and retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	m.Attempts = f.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_attempts_total",
		Help:      "Transport invocations, one per attempt",
	})

	m.Retries = f.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_retries_total",
		Help:      "Backoff waits scheduled after a retryable failure",
	})
}

func initBreakerMetrics(f promauto.Factory, m *Metrics) {
	m.BreakerState = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "breaker_state",
		Help:      "Circuit state per resource (0 closed, 1 open, 2 half-open)",
	}, []string{"resource"})

	m.BreakerTransitions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "breaker_transitions_total",
		Help:      "Circuit state changes",
	}, []string{"resource", "to"})
}

func initBackpressureMetrics(f promauto.Factory, m *Metrics) {
	m.QueueDepth = f.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "upstream_queue_depth",
		Help:      "Calls waiting for a concurrency slot",
	})

	m.InFlight = f.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "upstream_in_flight",
		Help:      "Calls holding a concurrency slot",
	})
}

func initSharingMetrics(f promauto.Factory, m *Metrics) {
	m.SharedCalls = f.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_shared_calls_total",
		Help:      "Calls answered by another caller's in-flight request",
	})

	m.CacheLookup = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_cache_lookups_total",
		Help:      "Response cache lookups by result",
	}, []string{"result"})
}

// RecordCall records the final outcome of one report call.
func (p *Provider) RecordCall(resource, outcome string, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.Calls.WithLabelValues(resource, outcome).Inc()
	p.Metrics.CallLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordAttempt counts one transport invocation.
func (p *Provider) RecordAttempt() {
	if p == nil {
		return
	}
	p.Metrics.Attempts.Inc()
}

// RecordRetry counts one scheduled backoff.
func (p *Provider) RecordRetry() {
	if p == nil {
		return
	}
	p.Metrics.Retries.Inc()
}

// RecordBreakerState publishes a circuit state change. state follows
// circuitbreaker.State ordering.
func (p *Provider) RecordBreakerState(resource, to string, state int) {
	if p == nil {
		return
	}
	p.Metrics.BreakerState.WithLabelValues(resource).Set(float64(state))
	p.Metrics.BreakerTransitions.WithLabelValues(resource, to).Inc()
}

// SetQueueDepth sets the current queue depth.
func (p *Provider) SetQueueDepth(depth int) {
	if p == nil {
		return
	}
	p.Metrics.QueueDepth.Set(float64(depth))
}

// SetInFlight sets the number of held slots.
func (p *Provider) SetInFlight(n int) {
	if p == nil {
		return
	}
	p.Metrics.InFlight.Set(float64(n))
}

// RecordShared counts a call served by a concurrent leader.
func (p *Provider) RecordShared() {
	if p == nil {
		return
	}
	p.Metrics.SharedCalls.Inc()
}

// RecordCacheLookup counts a response cache lookup.
func (p *Provider) RecordCacheLookup(result string) {
	if p == nil {
		return
	}
	p.Metrics.CacheLookup.WithLabelValues(result).Inc()
}

// StartSpan starts a new trace span. The caller ends it.
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
