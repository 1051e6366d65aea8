package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routedata/internal/app"
	"github.com/vango-dev/routedata/pkg/events"
)

func routesCmd(load configLoader) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route tree",
		Long: `Print the route tree built from the configured declarations, or the
built-in events routes.

Examples:
  routedata routes
  routedata routes --match=/events/e1/edit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			client, err := events.NewClient(cfg.Backend.URL)
			if err != nil {
				return err
			}
			a := app.New(client, nil)
			decls, err := cfg.LoadRoutes()
			if err != nil {
				return err
			}
			tree, err := a.Tree(decls)
			if err != nil {
				return err
			}

			fmt.Print(tree.String())
			loaders, actions, handlers := a.Registry().Names()
			fmt.Println()
			info("loaders:        %s", strings.Join(loaders, ", "))
			info("actions:        %s", strings.Join(actions, ", "))
			info("error handlers: %s", strings.Join(handlers, ", "))

			if match == "" {
				return nil
			}
			fmt.Println()
			chain, ok := tree.Match(match)
			if !ok {
				warn("No route matches %s", match)
				return nil
			}
			success("%s matches %s", match, strings.Join(chain.IDs(), " > "))
			for k, v := range chain.Leaf().Params {
				info("%s = %s", k, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "", "Show the chain matching this path")

	return cmd
}
