package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routedata/internal/app"
	"github.com/vango-dev/routedata/internal/errors"
	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/router"
)

func navigateCmd(load configLoader) *cobra.Command {
	var (
		method  string
		fields  []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "navigate <path>",
		Short: "Navigate once against the backend and print the page",
		Long: `Navigate to a path, wait for its loaders and deferred values, and
print the rendered page. With --method the path is submitted instead.

Examples:
  routedata navigate /events
  routedata navigate /events/new --method=POST -f title=Launch -f date=2026-05-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := url.Values{}
			for _, f := range fields {
				k, v, ok := strings.Cut(f, "=")
				if !ok {
					return errors.New("E160").WithDetail(fmt.Sprintf("form field %q is not key=value", f))
				}
				form.Add(k, v)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := buildStack(cfg, nil)
			if err != nil {
				return err
			}
			nav := st.navigator()
			defer nav.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			target := args[0]
			if method != "" {
				if _, err := nav.Navigate(target).Wait(ctx); err != nil {
					return err
				}
				if _, err := nav.Submit(router.Submission{Method: method, Form: form}).Wait(ctx); err != nil {
					return err
				}
			} else {
				if len(form) > 0 {
					target += "?" + form.Encode()
				}
				if _, err := nav.Navigate(target).Wait(ctx); err != nil {
					return err
				}
			}

			snap := nav.Snapshot()
			for _, v := range snap.LoaderData {
				b, ok := v.(*deferred.Bundle)
				if !ok {
					continue
				}
				for _, key := range b.Keys() {
					c, _ := b.Cell(key)
					c.Await(ctx)
				}
			}
			return app.Render(os.Stdout, nav.Snapshot())
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "", "Submit with this method instead of navigating")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Form field key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")

	return cmd
}
