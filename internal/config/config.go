package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/routedata/internal/errors"
	"github.com/vango-dev/routedata/pkg/router"
)

const (
	// ConfigFileName is the JSON configuration file name.
	ConfigFileName = "routedata.json"

	// TOMLFileName is the TOML configuration file name.
	TOMLFileName = "routedata.toml"

	DefaultPort        = 3000
	DefaultHost        = "localhost"
	DefaultBackendURL  = "http://localhost:8080"
	DefaultTimeout     = "10s"
	DefaultMetricsPath = "/metrics"
	DefaultNamespace   = "routedata"
	DefaultTracerName  = "routedata"
	DefaultStoreKind   = StoreMemory
	DefaultStorePath   = "events.json"
	DefaultLogLevel    = "info"
	DefaultMaxRedirect = 20
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreS3     = "s3"
)

// Config represents routedata.json or routedata.toml.
type Config struct {
	// Routes is the path to a route declaration file. Empty means the
	// built-in events routes.
	Routes string `json:"routes,omitempty" toml:"routes,omitempty"`

	Backend    BackendConfig    `json:"backend" toml:"backend"`
	Server     ServerConfig     `json:"server" toml:"server"`
	Navigation NavigationConfig `json:"navigation" toml:"navigation"`
	Metrics    MetricsConfig    `json:"metrics" toml:"metrics"`
	Tracing    TracingConfig    `json:"tracing" toml:"tracing"`
	Store      StoreConfig      `json:"store" toml:"store"`
	Log        LogConfig        `json:"log" toml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BackendConfig locates the events backend.
type BackendConfig struct {
	URL string `json:"url,omitempty" toml:"url,omitempty"`

	// Timeout bounds each backend request (e.g. "10s").
	Timeout string `json:"timeout,omitempty" toml:"timeout,omitempty"`
}

// ServerConfig is the listen address of serve and backend.
type ServerConfig struct {
	Host string `json:"host,omitempty" toml:"host,omitempty"`
	Port int    `json:"port,omitempty" toml:"port,omitempty"`
}

// NavigationConfig tunes navigators.
type NavigationConfig struct {
	MaxRedirects int `json:"maxRedirects,omitempty" toml:"maxRedirects,omitempty"`

	// LoaderTimeout bounds each loader and action call. Empty means none.
	LoaderTimeout string `json:"loaderTimeout,omitempty" toml:"loaderTimeout,omitempty"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	Path      string `json:"path,omitempty" toml:"path,omitempty"`
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty"`
}

// TracingConfig controls otel spans.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" toml:"tracerName,omitempty"`
}

// StoreConfig selects the backend's event store.
type StoreConfig struct {
	// Kind is memory, file or s3.
	Kind string `json:"kind,omitempty" toml:"kind,omitempty"`

	// Path is the JSON file of the file store.
	Path string `json:"path,omitempty" toml:"path,omitempty"`

	Bucket   string `json:"bucket,omitempty" toml:"bucket,omitempty"`
	Key      string `json:"key,omitempty" toml:"key,omitempty"`
	Region   string `json:"region,omitempty" toml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint,omitempty"`
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `json:"level,omitempty" toml:"level,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads routedata.json, or routedata.toml when there is no JSON
// file, from dir.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E121").
		WithDetail("No " + ConfigFileName + " or " + TOMLFileName + " found in " + dir)
}

// LoadFile reads configuration from path. The format follows the file
// extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").WithDetail("No config file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithPath(path)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithPath(path)
		}
	default:
		return nil, errors.New("E123").WithPath(path)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path in the format its extension
// names.
func (c *Config) SaveTo(path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.New("E120").Wrap(err)
		}
		data = append(b, '\n')
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return errors.New("E120").Wrap(err)
		}
		data = buf.Bytes()
	default:
		return errors.New("E123").WithPath(path)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = DefaultBackendURL
	}
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = DefaultTimeout
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Navigation.MaxRedirects == 0 {
		c.Navigation.MaxRedirects = DefaultMaxRedirect
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}

	if c.Store.Kind == "" {
		c.Store.Kind = DefaultStoreKind
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Store.Key == "" {
		c.Store.Key = "events.json"
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E122").
			WithDetail("server.port must be between 0 and 65535")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("E122").
			WithDetail("backend.url must be an http(s) URL, got " + strconv.Quote(c.Backend.URL))
	}
	if _, err := parseDuration("backend.timeout", c.Backend.Timeout); err != nil {
		return err
	}
	if _, err := parseDuration("navigation.loaderTimeout", c.Navigation.LoaderTimeout); err != nil {
		return err
	}
	if c.Navigation.MaxRedirects < 0 {
		return errors.New("E122").WithDetail("navigation.maxRedirects must not be negative")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("E122").WithDetail("metrics.path must start with /")
	}
	switch c.Store.Kind {
	case StoreMemory, StoreFile:
	case StoreS3:
		if c.Store.Bucket == "" {
			return errors.New("E122").WithDetail("store.bucket is required for the s3 store")
		}
	default:
		return errors.New("E122").
			WithDetail("store.kind must be memory, file or s3, got " + strconv.Quote(c.Store.Kind))
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("E122").
			WithDetail(field + " must be a duration such as \"10s\", got " + strconv.Quote(s))
	}
	return d, nil
}

// BackendTimeout returns backend.timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	d, _ := parseDuration("backend.timeout", c.Backend.Timeout)
	return d
}

// LoaderTimeout returns navigation.loaderTimeout, or 0 for none.
func (c *Config) LoaderTimeout() time.Duration {
	d, _ := parseDuration("navigation.loaderTimeout", c.Navigation.LoaderTimeout)
	return d
}

// LogLevel returns log.level as a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, errors.New("E122").
			WithDetail("log.level must be debug, info, warn or error, got " + strconv.Quote(c.Log.Level))
	}
	return level, nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// StorePath returns the file store path, resolved against the config
// directory.
func (c *Config) StorePath() string {
	return c.resolve(c.Store.Path)
}

// RoutesPath returns the route declaration file, or "" for the built-in
// routes.
func (c *Config) RoutesPath() string {
	if c.Routes == "" {
		return ""
	}
	return c.resolve(c.Routes)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// LoadRoutes reads the route declaration file. JSON files hold an array
// of declarations; TOML files hold [[routes]] tables. It returns nil when
// no file is configured.
func (c *Config) LoadRoutes() ([]router.Declaration, error) {
	path := c.RoutesPath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E121").WithDetail("route declarations: " + err.Error()).WithPath(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decls, err := router.ParseDeclarations(data)
		if err != nil {
			return nil, err
		}
		return decls, nil
	case ".toml":
		var doc struct {
			Routes []router.Declaration `toml:"routes"`
		}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, errors.New("E120").
				WithDetail("route declarations: " + err.Error()).
				WithPath(path)
		}
		return doc.Routes, nil
	default:
		return nil, errors.New("E123").WithPath(path)
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, TOMLFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E121").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working
// directory or its nearest ancestor holding a config file. Without one it
// returns the defaults.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		if errors.Is(err, "E121") {
			return New(), nil
		}
		return nil, err
	}

	return Load(root)
}
