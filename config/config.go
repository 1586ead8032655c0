// Package config loads agent configuration from YAML with environment
// overrides, and watches it for changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds one dispatch attempt to the collector.
const DefaultTimeout = 5 * time.Second

// Config holds the agent's named options.
type Config struct {
	// Active controls whether Send dispatches anything. An inactive agent
	// drains its stores silently; disabled telemetry is not an error.
	Active bool

	// AppName identifies the monitored service on the intake envelope.
	AppName string

	// AppVersion is the monitored service's version.
	AppVersion string

	// Environment is the deployment environment ("production", "staging").
	Environment string

	// ServerURL is the collector base URL, e.g. "https://apm.example.com".
	ServerURL string

	// SecretToken authenticates against the collector, sent as a Bearer
	// token. Empty disables the Authorization header.
	SecretToken string

	// BacktraceLimit bounds stack snapshots on stopped transactions and
	// spans. Zero means unbounded per the capture mechanism's convention.
	BacktraceLimit int

	// Timeout bounds a single dispatch attempt.
	Timeout time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Active:  true,
		AppName: "unnamed-app",
		Timeout: DefaultTimeout,
	}
}

// rawConfig is the YAML shape; Timeout travels as a duration string.
type rawConfig struct {
	Active         *bool  `yaml:"active"`
	AppName        string `yaml:"app_name"`
	AppVersion     string `yaml:"app_version"`
	Environment    string `yaml:"environment"`
	ServerURL      string `yaml:"server_url"`
	SecretToken    string `yaml:"secret_token"`
	BacktraceLimit int    `yaml:"backtrace_limit"`
	Timeout        string `yaml:"timeout"`
}

// Load reads configuration from a YAML file, then applies TRACECAP_*
// environment overrides. An empty path falls back to
// ~/.tracecap/config.yaml. A missing file returns defaults; invalid YAML
// returns an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			applyEnv(&cfg)
			return cfg, nil
		}
		path = filepath.Join(home, ".tracecap", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if raw.Active != nil {
		cfg.Active = *raw.Active
	}
	if raw.AppName != "" {
		cfg.AppName = raw.AppName
	}
	cfg.AppVersion = raw.AppVersion
	cfg.Environment = raw.Environment
	cfg.ServerURL = raw.ServerURL
	cfg.SecretToken = raw.SecretToken
	cfg.BacktraceLimit = raw.BacktraceLimit
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid timeout %q: %w", raw.Timeout, err)
		}
		cfg.Timeout = d
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets the environment win over file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TRACECAP_ACTIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Active = b
		}
	}
	if v := os.Getenv("TRACECAP_APP_NAME"); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv("TRACECAP_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("TRACECAP_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("TRACECAP_SECRET_TOKEN"); v != "" {
		cfg.SecretToken = v
	}
}

// Validate checks that an active configuration can actually dispatch.
func (c Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("config: app_name must not be empty")
	}
	if c.Active && c.ServerURL == "" {
		return fmt.Errorf("config: server_url required while active")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	if c.BacktraceLimit < 0 {
		return fmt.Errorf("config: backtrace_limit must not be negative")
	}
	return nil
}
