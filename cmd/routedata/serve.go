package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/routedata/pkg/bridge"
	"github.com/vango-dev/routedata/pkg/navigation"
)

func serveCmd(load configLoader) *cobra.Command {
	var (
		port        int
		host        string
		allowOrigin bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the events app over a websocket bridge",
		Long: `Serve the events route tree to remote views.

Each websocket connection on /ws gets its own navigator. Metrics are
served on metrics.path when metrics.enabled is set.

Examples:
  routedata serve
  routedata serve --port=3000 --allow-any-origin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			var registry *prometheus.Registry
			if cfg.Metrics.Enabled {
				registry = prometheus.NewRegistry()
				registry.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
			}
			var reg prometheus.Registerer
			if registry != nil {
				reg = registry
			}
			st, err := buildStack(cfg, reg)
			if err != nil {
				return err
			}

			bridgeCfg := bridge.Config{
				NewNavigator: func(r *http.Request) (*navigation.Navigator, error) {
					return st.navigator(), nil
				},
				Logger: st.logger,
			}
			if allowOrigin {
				bridgeCfg.CheckOrigin = func(r *http.Request) bool { return true }
			}
			br := bridge.New(bridgeCfg)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Logger)
			r.Use(middleware.Recoverer)
			r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})
			r.Get("/routes", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Write([]byte(st.tree.String()))
			})
			r.Handle("/ws", br)
			if registry != nil {
				r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			}

			success("Serving on http://%s", cfg.Address())
			info("Backend: %s", cfg.Backend.URL)
			info("Bridge:  ws://%s/ws", cfg.Address())
			if registry != nil {
				info("Metrics: http://%s%s", cfg.Address(), cfg.Metrics.Path)
			}
			if allowOrigin {
				warn("Accepting websocket connections from any origin")
			}
			return listen(cfg.Address(), r)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().BoolVar(&allowOrigin, "allow-any-origin", false, "Accept websocket upgrades from any origin")

	return cmd
}
