package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routedata/internal/config"
	"github.com/vango-dev/routedata/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// colorOn is cleared by --color=never, NO_COLOR, or a non-terminal stdout.
var colorOn = true

func main() {
	var configPath, colorMode string

	rootCmd := &cobra.Command{
		Use:   "routedata",
		Short: "Route-to-data coordination for navigable applications",
		Long: `routedata matches URLs to nested routes, runs their loaders and
actions, and tracks navigation state.

It ships the events demo: a reference backend, the events route tree
and a websocket bridge that streams navigation snapshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setColors(colorMode)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to routedata.json or routedata.toml")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "Colored output: auto, always or never")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}

	rootCmd.AddCommand(
		backendCmd(load),
		serveCmd(load),
		routesCmd(load),
		navigateCmd(load),
		initCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FromError(err, "E169").Format())
		os.Exit(1)
	}
}

func setColors(mode string) error {
	switch mode {
	case "always":
		colorOn = true
	case "never":
		colorOn = false
	case "auto", "":
		colorOn = os.Getenv("NO_COLOR") == "" && isTerminal(os.Stdout)
	default:
		return errors.New("E160").
			WithDetail(fmt.Sprintf("unknown color mode %q", mode)).
			WithSuggestion("Use --color auto, always or never")
	}
	if colorOn {
		errors.EnableColors()
	} else {
		errors.DisableColors()
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func paint(code, text string) string {
	if !colorOn {
		return text
	}
	return code + text + "\033[0m"
}

type configLoader func() (*config.Config, error)

// loadConfig reads path, or searches from the working directory when
// path is empty. It also installs the default logger.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("%s %s\n", paint("\033[32m", "✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", paint("\033[33m", "⚠"), fmt.Sprintf(format, args...))
}
