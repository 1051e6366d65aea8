package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/routedata/pkg/invoke"
	"github.com/vango-dev/routedata/pkg/router"
)

// DefaultTracerName is the tracer used when none is configured.
const DefaultTracerName = "routedata"

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "routedata").
	TracerName string

	// Provider overrides the global tracer provider.
	Provider trace.TracerProvider

	// Filter determines which calls to trace. If nil, all calls are traced.
	Filter func(call *invoke.Call) bool
}

// TracingOption configures Tracing.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(p trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = p
	}
}

// WithCallFilter sets a filter for traced calls.
func WithCallFilter(filter func(call *invoke.Call) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// Tracing starts a span around each loader and action call. The span's
// context is passed to the call, so outgoing requests made by the loader
// become children of it.
type Tracing struct {
	tracer trace.Tracer
	filter func(call *invoke.Call) bool
}

// NewTracing returns the tracing middleware. Without a provider it uses
// the global one; configure it in main() before building the invoker.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: DefaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracing{tracer: provider.Tracer(config.TracerName), filter: config.Filter}
}

// Handle implements invoke.Middleware.
func (t *Tracing) Handle(ctx context.Context, call *invoke.Call, next invoke.Next) router.Result {
	if t.filter != nil && !t.filter(call) {
		return next(ctx)
	}

	attrs := []attribute.KeyValue{
		attribute.String("routedata.kind", string(call.Kind)),
		attribute.String("routedata.route", call.RouteID()),
		attribute.String("routedata.pattern", call.Match.Node.Pattern),
	}
	if call.URL != nil {
		attrs = append(attrs, attribute.String("routedata.url", call.URL.String()))
	}
	if call.TransitionID != "" {
		attrs = append(attrs, attribute.String("routedata.transition", call.TransitionID))
	}
	if call.Submission != nil {
		attrs = append(attrs, attribute.String("routedata.method", call.Submission.NormalizedMethod()))
	}

	spanCtx, span := t.tracer.Start(ctx,
		fmt.Sprintf("routedata.%s %s", call.Kind, call.RouteID()),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	res := next(spanCtx)

	span.SetAttributes(attribute.String("routedata.result", ResultLabel(res)))
	switch {
	case res.IsRedirect():
		span.SetAttributes(attribute.String("routedata.redirect", res.Location()))
		span.SetStatus(codes.Ok, "")
	case res.IsFailure():
		if se, ok := router.AsStatus(res.Err()); ok {
			span.SetAttributes(attribute.Int("routedata.status", se.Status))
		}
		span.RecordError(res.Err())
		span.SetStatus(codes.Error, res.Err().Error())
	default:
		span.SetStatus(codes.Ok, "")
	}
	return res
}
