package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/routedata/pkg/invoke"
	"github.com/vango-dev/routedata/pkg/router"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "routedata").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "routedata",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects:
//   - routedata_transitions_total: navigations by kind and outcome
//   - routedata_transition_duration_seconds: navigation latency by kind
//   - routedata_invocations_total: loader/action calls by kind, route and result
//   - routedata_invocation_duration_seconds: call latency by kind and route
//   - routedata_deferred_settled_total: deferred cells by outcome
type Metrics struct {
	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	deferredSettled    *prometheus.CounterVec
}

// NewMetrics registers the collectors with the configured registry.
// It panics if they are already registered there.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transitions_total",
			Help:        "Total number of settled navigation transitions",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "outcome"}),

		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transition_duration_seconds",
			Help:        "Time from transition start to commit in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		invocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocations_total",
			Help:        "Total number of loader and action invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "route", "result"}),

		invocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocation_duration_seconds",
			Help:        "Loader and action duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind", "route"}),

		deferredSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "deferred_settled_total",
			Help:        "Total number of settled deferred cells",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),
	}
}

// Handle implements invoke.Middleware.
func (m *Metrics) Handle(ctx context.Context, call *invoke.Call, next invoke.Next) router.Result {
	start := time.Now()
	res := next(ctx)

	kind, route := string(call.Kind), call.RouteID()
	m.invocationDuration.WithLabelValues(kind, route).Observe(time.Since(start).Seconds())
	m.invocationsTotal.WithLabelValues(kind, route, ResultLabel(res)).Inc()
	return res
}

// ObserveTransition records a settled transition.
func (m *Metrics) ObserveTransition(kind, outcome string, d time.Duration) {
	m.transitionsTotal.WithLabelValues(kind, outcome).Inc()
	m.transitionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveDeferred records a settled deferred cell.
func (m *Metrics) ObserveDeferred(outcome string) {
	m.deferredSettled.WithLabelValues(outcome).Inc()
}

// ResultLabel maps a result to a low-cardinality label value:
// "data", "redirect", "validation" or "failure".
func ResultLabel(res router.Result) string {
	switch {
	case res.IsRedirect():
		return "redirect"
	case res.IsValidation():
		return "validation"
	case res.IsFailure():
		return "failure"
	default:
		return "data"
	}
}
