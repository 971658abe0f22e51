// ABOUTME: Configuration loading and parsing for registryd
// ABOUTME: YAML with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete registryd configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig holds content catalog settings.
type RegistryConfig struct {
	// RootPath is the directory every catalogued file must live under.
	RootPath string `yaml:"root_path"`
}

// AuthConfig holds the four authentication tunables. Durations are given as
// Go duration strings ("30s", "1h") and parsed at load time.
type AuthConfig struct {
	ChallengeDuration      time.Duration `yaml:"-"`
	SessionDefaultDuration time.Duration `yaml:"-"`
	SessionMaxDuration     time.Duration `yaml:"-"`
	CleanupInterval        time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ChallengeDurationRaw      string `yaml:"challenge_duration"`
	SessionDefaultDurationRaw string `yaml:"session_default_duration"`
	SessionMaxDurationRaw     string `yaml:"session_max_duration"`
	CleanupIntervalRaw        string `yaml:"cleanup_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Auth tunable defaults, applied when the config file leaves them out.
const (
	DefaultChallengeDuration      = 30 * time.Second
	DefaultSessionDefaultDuration = time.Hour
	DefaultSessionMaxDuration     = 24 * time.Hour
	DefaultCleanupInterval        = time.Minute
)

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// consistent.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Registry.RootPath == "" {
		return fmt.Errorf("registry.root_path is required")
	}
	if c.Auth.SessionDefaultDuration > c.Auth.SessionMaxDuration {
		return fmt.Errorf("auth.session_default_duration exceeds auth.session_max_duration")
	}
	return nil
}

func (c *Config) parseDurations() error {
	fields := []struct {
		raw      string
		dst      *time.Duration
		fallback time.Duration
		name     string
	}{
		{c.Auth.ChallengeDurationRaw, &c.Auth.ChallengeDuration, DefaultChallengeDuration, "challenge_duration"},
		{c.Auth.SessionDefaultDurationRaw, &c.Auth.SessionDefaultDuration, DefaultSessionDefaultDuration, "session_default_duration"},
		{c.Auth.SessionMaxDurationRaw, &c.Auth.SessionMaxDuration, DefaultSessionMaxDuration, "session_max_duration"},
		{c.Auth.CleanupIntervalRaw, &c.Auth.CleanupInterval, DefaultCleanupInterval, "cleanup_interval"},
	}

	for _, f := range fields {
		if f.raw == "" {
			*f.dst = f.fallback
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}
