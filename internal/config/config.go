// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/martus-proxy/config.toml",
	"configs/config.toml",
}

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// Unknown-service policies.
const (
	UnknownNotFound = "not_found"
	UnknownSelf     = "self"
)

// KnownServices lists the built-in backend services and their default addresses.
// Each can be overridden by the environment variable MARTUS_<ID>_SERVICE.
var KnownServices = map[string]string{
	"student": "http://0.0.0.0:5001",
	"staff":   "http://0.0.0.0:5002",
	"library": "http://0.0.0.0:5003",
	"hostel":  "http://0.0.0.0:5004",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config    string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host      string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port      int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	PublicURL string `kong:"name='public-url',help='Externally reachable proxy address (overrides config).',env='PROXY_SERVER'"`
	LogLevel  string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig      `toml:"server"`
	Routing  RoutingConfig     `toml:"routing"`
	Services map[string]string `toml:"services"`
	Upstream UpstreamConfig    `toml:"upstream"`
	CORS     CORSConfig        `toml:"cors"`
	Log      LogConfig         `toml:"log"`
	Metrics  MetricsConfig     `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"`           // 0 means "use default" (5000)
	PublicURL    string          `toml:"public_url"`     // the proxy's own address
	BodyMaxBytes int64           `toml:"body_max_bytes"` // 0 disables the limit
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// RoutingConfig controls how inbound paths map to services.
type RoutingConfig struct {
	Version        string `toml:"version"`
	UnknownService string `toml:"unknown_service"`
}

// UpstreamConfig holds backend connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections"`
}

// CORSConfig holds the cross-origin policy applied to every route.
type CORSConfig struct {
	AllowOrigins []string `toml:"allow_origins"`
	AllowMethods []string `toml:"allow_methods"`
	AllowHeaders []string `toml:"allow_headers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Disabled bool   `toml:"disabled"`
	Path     string `toml:"path"`
}

// Load reads the optional TOML config file, applies environment and CLI
// overrides, and validates the result. A missing config file is not an
// error: every setting has a default.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.setDefaults()
	cfg.applyEnv()
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// ServiceEnvKey returns the environment variable that overrides the base
// address of service id.
func ServiceEnvKey(id string) string {
	return "MARTUS_" + strings.ToUpper(strings.ReplaceAll(id, "-", "_")) + "_SERVICE"
}

// applyEnv overrides service addresses from MARTUS_<ID>_SERVICE variables.
func (c *Config) applyEnv() {
	for id := range c.Services {
		if v, ok := lookupEnv(ServiceEnvKey(id)); ok && v != "" {
			c.Services[id] = v
		}
	}
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.PublicURL != "" {
		c.Server.PublicURL = cli.PublicURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	err := validation.Errors{
		"server.port": validation.Validate(c.Server.Port, validation.Min(1), validation.Max(65535)),
		"server.public_url": validation.Validate(c.Server.PublicURL,
			validation.Required, is.RequestURL, validation.By(httpURL)),
		"server.body_max_bytes": validation.Validate(c.Server.BodyMaxBytes, validation.Min(int64(0))),
		"routing.version": validation.Validate(c.Routing.Version,
			validation.Required, validation.By(noSlash)),
		"routing.unknown_service": validation.Validate(c.Routing.UnknownService,
			validation.In(UnknownNotFound, UnknownSelf)),
		"upstream.timeout_seconds":  validation.Validate(c.Upstream.TimeoutSeconds, validation.Min(1)),
		"upstream.idle_connections": validation.Validate(c.Upstream.IdleConnections, validation.Min(0)),
		"log.level": validation.Validate(strings.ToLower(c.Log.Level),
			validation.In("debug", "info", "warn", "error")),
		"log.format": validation.Validate(strings.ToLower(c.Log.Format),
			validation.In("json", "text")),
	}.Filter()
	if err != nil {
		return err
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	for id, addr := range c.Services {
		if err := validation.Validate(id, validation.Required, validation.By(noSlash)); err != nil {
			return fmt.Errorf("services: identifier %q: %w", id, err)
		}
		if err := validation.Validate(addr, validation.Required, is.RequestURL, validation.By(httpURL)); err != nil {
			return fmt.Errorf("services.%s: %w", id, err)
		}
	}

	if !c.Metrics.Disabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/" + c.Routing.Version, "/health", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return errors.New("must be an http or https URL")
	}
	return nil
}

func noSlash(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		return errors.New("must not contain '/'")
	}
	return nil
}

// setDefaults fills zero-valued fields with defaults and seeds the built-in
// services that the config file did not declare.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://0.0.0.0:5000"
	}
	if c.Routing.Version == "" {
		c.Routing.Version = "v1"
	}
	if c.Routing.UnknownService == "" {
		c.Routing.UnknownService = UnknownNotFound
	}
	if c.Services == nil {
		c.Services = make(map[string]string, len(KnownServices))
	}
	for id, addr := range KnownServices {
		if _, ok := c.Services[id]; !ok {
			c.Services[id] = addr
		}
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"*"}
	}
	if len(c.CORS.AllowMethods) == 0 {
		c.CORS.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
	}
	if len(c.CORS.AllowHeaders) == 0 {
		c.CORS.AllowHeaders = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
