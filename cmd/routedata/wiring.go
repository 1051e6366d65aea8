package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/routedata/internal/app"
	"github.com/vango-dev/routedata/internal/backend"
	"github.com/vango-dev/routedata/internal/config"
	"github.com/vango-dev/routedata/pkg/events"
	"github.com/vango-dev/routedata/pkg/invoke"
	"github.com/vango-dev/routedata/pkg/navigation"
	"github.com/vango-dev/routedata/pkg/router"
	"github.com/vango-dev/routedata/pkg/telemetry"
)

// stack is the shared wiring of serve and navigate.
type stack struct {
	tree    *router.Tree
	invoker *invoke.Invoker
	metrics *telemetry.Metrics
	logger  *slog.Logger
	cfg     *config.Config
}

func buildStack(cfg *config.Config, registry prometheus.Registerer) (*stack, error) {
	logger := slog.Default()

	client, err := events.NewClient(cfg.Backend.URL,
		events.WithTimeout(cfg.BackendTimeout()),
		events.WithLogger(logger.With("component", "events-client")))
	if err != nil {
		return nil, err
	}

	decls, err := cfg.LoadRoutes()
	if err != nil {
		return nil, err
	}
	tree, err := app.New(client, logger).Tree(decls)
	if err != nil {
		return nil, err
	}

	var mw []invoke.Middleware
	var metrics *telemetry.Metrics
	if registry != nil {
		metrics = telemetry.NewMetrics(
			telemetry.WithNamespace(cfg.Metrics.Namespace),
			telemetry.WithRegistry(registry))
		mw = append(mw, metrics)
	}
	if cfg.Tracing.Enabled {
		mw = append(mw, telemetry.NewTracing(telemetry.WithTracerName(cfg.Tracing.TracerName)))
	}
	inv := invoke.New(
		invoke.WithLogger(logger),
		invoke.WithMiddleware(mw...),
		invoke.WithTimeout(cfg.LoaderTimeout()),
	)

	return &stack{tree: tree, invoker: inv, metrics: metrics, logger: logger, cfg: cfg}, nil
}

func (s *stack) navigator() *navigation.Navigator {
	opts := []navigation.Option{
		navigation.WithLogger(s.logger),
		navigation.WithInvoker(s.invoker),
		navigation.WithMaxRedirects(s.cfg.Navigation.MaxRedirects),
	}
	if s.metrics != nil {
		opts = append(opts, navigation.WithObserver(s.metrics))
	}
	return navigation.New(s.tree, opts...)
}

// openStore builds the event store the config selects.
func openStore(cfg *config.Config) backend.Store {
	switch cfg.Store.Kind {
	case config.StoreFile:
		return backend.NewFileStore(cfg.StorePath())
	case config.StoreS3:
		client := backend.NewS3Client(backend.S3Options{
			Region:   cfg.Store.Region,
			Endpoint: cfg.Store.Endpoint,
		})
		return backend.NewS3Store(client, cfg.Store.Bucket, cfg.Store.Key)
	default:
		return backend.NewMemoryStore()
	}
}

// listen serves h until SIGINT or SIGTERM, then shuts down gracefully.
func listen(addr string, h http.Handler) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
