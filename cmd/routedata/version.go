package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// stackModules are the dependencies reported by the version command.
var stackModules = []string{
	"github.com/go-chi/chi/v5",
	"github.com/gorilla/websocket",
	"github.com/prometheus/client_golang",
	"go.opentelemetry.io/otel",
	"github.com/aws/aws-sdk-go-v2/service/s3",
}

type versionInfo struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Built     string            `json:"built"`
	Module    string            `json:"module,omitempty"`
	GoVersion string            `json:"go"`
	Platform  string            `json:"platform"`
	Stack     map[string]string `json:"stack,omitempty"`
}

func currentVersion() versionInfo {
	v := versionInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	v.Module = bi.Main.Path
	if v.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v.Version = bi.Main.Version
	}
	for _, dep := range bi.Deps {
		for _, want := range stackModules {
			if dep.Path == want {
				if v.Stack == nil {
					v.Stack = make(map[string]string)
				}
				v.Stack[dep.Path] = dep.Version
			}
		}
	}
	return v
}

func versionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and dependency information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := currentVersion()
			switch {
			case short:
				fmt.Println(v.Version)
			case asJSON:
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			default:
				fmt.Printf("  routedata %s (%s, built %s)\n", v.Version, v.Commit, v.Built)
				if v.Module != "" {
					fmt.Printf("  Module:   %s\n", v.Module)
				}
				fmt.Printf("  Go:       %s %s\n", v.GoVersion, v.Platform)
				for _, path := range stackModules {
					if ver, ok := v.Stack[path]; ok {
						name := path[strings.LastIndex(path, "/")+1:]
						fmt.Printf("  %-9s %s\n", name+":", ver)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON")

	return cmd
}
