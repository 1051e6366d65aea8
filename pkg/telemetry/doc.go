// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for route invocations and navigations.
//
// Both Metrics and Tracing implement invoke.Middleware:
//
//	metrics := telemetry.NewMetrics(telemetry.WithNamespace("myapp"))
//	inv := invoke.New(invoke.WithMiddleware(
//	    telemetry.NewTracing(),
//	    metrics,
//	))
//	nav := navigation.New(tree,
//	    navigation.WithInvoker(inv),
//	    navigation.WithObserver(metrics),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
package telemetry
