// ABOUTME: Configuration loading and parsing for beykus-gateway
// ABOUTME: Supports YAML files with environment variable expansion, .env files and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Beykus-Y/beykusaysite/internal/auth"
	"github.com/Beykus-Y/beykusaysite/internal/provider"
)

// Provider kinds
const (
	ProviderOpenAI   = "openai"
	ProviderLoopback = "loopback"
)

// Defaults applied to unset fields
const (
	DefaultHTTPAddr        = "localhost:8080"
	DefaultTokenTTL        = 24 * time.Hour
	DefaultRequestTimeout  = 30 * time.Second
	DefaultFragmentTimeout = 60 * time.Second
	DefaultIdleTimeout     = time.Hour
	DefaultTemperature     = float32(0.8)
	DefaultTopP            = float32(0.9)
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete beykus-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// ProviderConfig selects and configures the upstream model provider
type ProviderConfig struct {
	Kind        string `yaml:"kind"` // "openai" (default) or "loopback"
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	PromptsPath string `yaml:"prompts_path"`

	RequestTimeout  time.Duration `yaml:"-"`
	FragmentTimeout time.Duration `yaml:"-"`
	Temperature     float32       `yaml:"-"`
	TopP            float32       `yaml:"-"`

	// LoopbackChunkSize is the fragment size of the loopback provider
	LoopbackChunkSize int `yaml:"loopback_chunk_size"`

	// Raw values for YAML unmarshaling; pointers tell "unset" from zero
	RequestTimeoutRaw  string   `yaml:"request_timeout"`
	FragmentTimeoutRaw string   `yaml:"fragment_timeout"`
	TemperatureRaw     *float32 `yaml:"temperature"`
	TopPRaw            *float32 `yaml:"top_p"`
}

// SessionsConfig holds the in-memory chat session settings
type SessionsConfig struct {
	DefaultModel provider.Model `yaml:"default_model"`
	IdleTimeout  time.Duration  `yaml:"-"`

	IdleTimeoutRaw string `yaml:"idle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = ProviderOpenAI
	}
	if c.Provider.RequestTimeout == 0 {
		c.Provider.RequestTimeout = DefaultRequestTimeout
	}
	if c.Provider.FragmentTimeout == 0 {
		c.Provider.FragmentTimeout = DefaultFragmentTimeout
	}
	c.Provider.Temperature = DefaultTemperature
	if c.Provider.TemperatureRaw != nil {
		c.Provider.Temperature = *c.Provider.TemperatureRaw
	}
	c.Provider.TopP = DefaultTopP
	if c.Provider.TopPRaw != nil {
		c.Provider.TopP = *c.Provider.TopPRaw
	}
	if c.Sessions.DefaultModel == "" {
		c.Sessions.DefaultModel = provider.DefaultModel
	}
	if c.Sessions.IdleTimeout == 0 {
		c.Sessions.IdleTimeout = DefaultIdleTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	switch c.Provider.Kind {
	case ProviderOpenAI:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required for the %s provider", ProviderOpenAI)
		}
	case ProviderLoopback:
	default:
		return fmt.Errorf("provider.kind must be %q or %q, got %q", ProviderOpenAI, ProviderLoopback, c.Provider.Kind)
	}
	if c.Provider.RequestTimeout < 0 || c.Provider.FragmentTimeout < 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("provider.temperature must be between 0 and 2")
	}
	if c.Provider.TopP <= 0 || c.Provider.TopP > 1 {
		return fmt.Errorf("provider.top_p must be in (0, 1]")
	}
	if c.Provider.LoopbackChunkSize < 0 {
		return fmt.Errorf("provider.loopback_chunk_size must not be negative")
	}

	model, err := provider.ParseModel(string(c.Sessions.DefaultModel))
	if err != nil {
		return fmt.Errorf("sessions.default_model: %w", err)
	}
	c.Sessions.DefaultModel = model
	if c.Sessions.IdleTimeout < 0 {
		return fmt.Errorf("sessions.idle_timeout must be positive")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"provider.request_timeout", cfg.Provider.RequestTimeoutRaw, &cfg.Provider.RequestTimeout},
		{"provider.fragment_timeout", cfg.Provider.FragmentTimeoutRaw, &cfg.Provider.FragmentTimeout},
		{"sessions.idle_timeout", cfg.Sessions.IdleTimeoutRaw, &cfg.Sessions.IdleTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
