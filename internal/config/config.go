package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/toxitrace/toxitrace/internal/storage"
)

// Config holds all configuration for the CLI and the portal
type Config struct {
	// Backend API configuration
	API APIConfig

	// Session storage configuration
	Storage StorageConfig

	// Logging configuration
	Logging LoggingConfig

	// Portal server configuration
	Portal PortalConfig
}

// APIConfig points at the ToxiTrace backend
type APIConfig struct {
	URL     string        `env:"TOXITRACE_API_URL" envDefault:"https://toxitrace-backendx.onrender.com"`
	Timeout time.Duration `env:"TOXITRACE_HTTP_TIMEOUT" envDefault:"30s"`
}

// StorageConfig selects where the session is persisted
type StorageConfig struct {
	Backend string `env:"TOXITRACE_STORAGE" envDefault:"keyring"`
	// Path overrides the file or sqlite location
	Path string `env:"TOXITRACE_STORAGE_PATH"`
}

// LoggingConfig holds logging-related configuration. Empty values let each
// binary pick its own default.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"` // json, console
}

// PortalConfig configures the web portal
type PortalConfig struct {
	Addr            string        `env:"PORTAL_ADDR" envDefault:":3000"`
	CORSOrigins     []string      `env:"PORTAL_CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	ShutdownTimeout time.Duration `env:"PORTAL_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load loads configuration from .env files and the environment
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return parse(env.Options{})
}

// LoadFrom parses configuration from environ only, ignoring the process
// environment
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) sanitize() {
	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = storage.BackendKeyring
	}

	origins := c.Portal.CORSOrigins[:0]
	for _, o := range c.Portal.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Portal.CORSOrigins = origins
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("TOXITRACE_API_URL must be an absolute URL, got %q", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("TOXITRACE_HTTP_TIMEOUT must be positive"))
	}
	if !slices.Contains(storage.Backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("TOXITRACE_STORAGE must be one of %s, got %q",
			strings.Join(storage.Backends, ", "), c.Storage.Backend))
	}
	if c.Portal.Addr == "" {
		errs = append(errs, errors.New("PORTAL_ADDR is required"))
	}

	return errors.Join(errs...)
}

// StorageOptions converts the storage settings for storage.Open. Keyring
// entries are namespaced by API host so sessions for different backends
// never mix.
func (c *Config) StorageOptions() storage.Options {
	opts := storage.Options{
		Backend: c.Storage.Backend,
		Path:    c.Storage.Path,
	}
	if u, err := url.Parse(c.API.URL); err == nil {
		opts.Namespace = u.Host
	}
	return opts
}

// LevelOr returns the configured level, or fallback when unset
func (l LoggingConfig) LevelOr(fallback string) string {
	if l.Level == "" {
		return fallback
	}
	return l.Level
}

// FormatOr returns the configured format, or fallback when unset
func (l LoggingConfig) FormatOr(fallback string) string {
	if l.Format == "" {
		return fallback
	}
	return l.Format
}
