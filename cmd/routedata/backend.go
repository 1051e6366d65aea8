package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/routedata/internal/backend"
	"github.com/vango-dev/routedata/internal/config"
)

func backendCmd(load configLoader) *cobra.Command {
	var (
		port  int
		store string
	)

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the reference events backend",
		Long: `Run the events HTTP backend.

The store is chosen by store.kind in the config: memory, file or s3.

Examples:
  routedata backend
  routedata backend --port=8080 --store=file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if store != "" {
				cfg.Store.Kind = store
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			srv := backend.New(openStore(cfg))
			success("Backend listening on http://%s", cfg.Address())
			info("Store: %s", cfg.Store.Kind)
			if cfg.Store.Kind == config.StoreFile {
				info("File: %s", cfg.StorePath())
			}
			return listen(cfg.Address(), srv)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVar(&store, "store", "", "Store kind: memory, file or s3")

	return cmd
}
