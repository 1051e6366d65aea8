package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routedata/internal/config"
	"github.com/vango-dev/routedata/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		format    string
		force     bool
		normalize bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write routedata.json, or routedata.toml with --format toml, holding
the default configuration.

With --normalize the existing file is loaded and written back in place
with every default filled in.

Examples:
  routedata init
  routedata init ./deploy --format toml
  routedata init --normalize`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if normalize {
				return runNormalize(dir)
			}
			return runInit(dir, format, force)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "File format: json or toml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Rewrite the existing file with defaults filled in")

	return cmd
}

// initPath returns the file init writes for format.
func initPath(dir, format string) (string, error) {
	switch format {
	case "json":
		return filepath.Join(dir, config.ConfigFileName), nil
	case "toml":
		return filepath.Join(dir, config.TOMLFileName), nil
	default:
		return "", errors.New("E160").
			WithDetail(fmt.Sprintf("unknown format %q", format)).
			WithSuggestion("Use --format json or --format toml")
	}
}

func runInit(dir, format string, force bool) error {
	path, err := initPath(dir, format)
	if err != nil {
		return err
	}
	if config.Exists(dir) && !force {
		return errors.New("E161").WithPath(dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.FromError(err, "E169")
	}

	if err := config.New().SaveTo(path); err != nil {
		return err
	}

	success("Created %s", path)
	fmt.Println()
	info("Start the reference backend with: routedata backend")
	info("Serve the bridge with:            routedata serve")
	return nil
}

func runNormalize(dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	success("Rewrote %s", cfg.Path())
	return nil
}
