package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/vango-dev/routedata/internal/config"
	"github.com/vango-dev/routedata/internal/errors"
)

func TestRunInitWritesDefaults(t *testing.T) {
	tests := []struct {
		format string
		file   string
	}{
		{"json", config.ConfigFileName},
		{"toml", config.TOMLFileName},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			if err := runInit(dir, tt.format, false); err != nil {
				t.Fatalf("runInit: %v", err)
			}
			cfg, err := config.LoadFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if cfg.Server.Port != config.DefaultPort {
				t.Errorf("Port = %d, want %d", cfg.Server.Port, config.DefaultPort)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestRunInitRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	if err := runInit(dir, "json", false); err != nil {
		t.Fatal(err)
	}
	err := runInit(dir, "toml", false)
	if !errors.Is(err, "E161") {
		t.Errorf("second init = %v, want E161", err)
	}
	if err := runInit(dir, "json", true); err != nil {
		t.Errorf("forced init = %v", err)
	}
}

func TestRunInitUnknownFormat(t *testing.T) {
	err := runInit(t.TempDir(), "yaml", false)
	if !errors.Is(err, "E160") {
		t.Fatalf("err = %v, want E160", err)
	}
	ce, _ := err.(*errors.Error)
	if ce == nil || ce.Suggestion != "Use --format json or --format toml" {
		t.Errorf("suggestion = %+v", ce)
	}
}

func TestRunNormalizeFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)
	if err := os.WriteFile(path, []byte(`{"server":{"port":8080}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := runNormalize(dir); err != nil {
		t.Fatalf("runNormalize: %v", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != config.DefaultHost {
		t.Errorf("server = %+v", cfg.Server)
	}
	data, _ := os.ReadFile(path)
	if len(data) <= len(`{"server":{"port":8080}}`) {
		t.Errorf("file was not rewritten:\n%s", data)
	}
}

func TestSetColors(t *testing.T) {
	defer setColors("always")

	tests := []struct {
		mode    string
		want    bool
		wantErr bool
	}{
		{"always", true, false},
		{"never", false, false},
		{"rainbow", false, true},
	}
	for _, tt := range tests {
		err := setColors(tt.mode)
		if (err != nil) != tt.wantErr {
			t.Errorf("setColors(%q) error = %v", tt.mode, err)
			continue
		}
		if err == nil && colorOn != tt.want {
			t.Errorf("setColors(%q): colorOn = %v, want %v", tt.mode, colorOn, tt.want)
		}
	}

	setColors("never")
	if got := paint("\033[32m", "ok"); got != "ok" {
		t.Errorf("paint = %q, want plain text", got)
	}
	out := errors.New("E161").Format()
	if want := "ERROR E161: Configuration file already exists"; !strings.Contains(out, want) || strings.Contains(out, "\033[") {
		t.Errorf("Format =\n%q", out)
	}
}

func TestCurrentVersion(t *testing.T) {
	v := currentVersion()
	if v.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", v.GoVersion, runtime.Version())
	}
	if v.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", v.Platform)
	}
	if v.Version == "" {
		t.Error("Version is empty")
	}
}
