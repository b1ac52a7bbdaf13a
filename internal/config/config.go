// Package config provides YAML configuration loading and validation for the
// watchdogd daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for watchdogd.
type Config struct {
	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// HTTPAddr is the listen address of the status API
	// (e.g. "127.0.0.1:8475"). Defaults to "127.0.0.1:8475" when omitted.
	HTTPAddr string `yaml:"http_addr"`

	// PollInterval is the period between change checks of every watch
	// (e.g. "500ms", "2s"). Defaults to 500ms when omitted.
	PollInterval Duration `yaml:"poll_interval"`

	// AssetRoot, when set, is prefixed to relative watch paths.
	AssetRoot string `yaml:"asset_root"`

	// Journal selects and configures the change-journal backend. Required.
	Journal JournalConfig `yaml:"journal"`

	// Auth configures optional bearer-token authentication of the status
	// API. When PublicKeyPath is empty the API is unauthenticated.
	Auth AuthConfig `yaml:"auth"`

	// Watches is the list of paths to watch at startup. At least one entry
	// is required.
	Watches []WatchSpec `yaml:"watches"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	// Driver is "sqlite" or "postgres". Required.
	Driver string `yaml:"driver"`

	// DSN is the backend-specific data source: a database file path for
	// sqlite (":memory:" is accepted), a connection string for postgres.
	// Required.
	DSN string `yaml:"dsn"`
}

// AuthConfig holds the RS256 verification key for the status API.
type AuthConfig struct {
	// PublicKeyPath is the path to a PEM-encoded RSA public key. Empty
	// disables authentication.
	PublicKeyPath string `yaml:"public_key_path"`
}

// WatchSpec is a single path to watch. The path may contain one '*' wildcard
// in its final segment.
type WatchSpec struct {
	// Name is a human-readable identifier recorded with every journal entry
	// for this watch (e.g. "shader-hot-reload"). Required.
	Name string `yaml:"name"`

	// Path is the file, directory, or wildcard pattern to watch. Required.
	Path string `yaml:"path"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validJournalDrivers is the set of accepted journal driver strings.
var validJournalDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. It returns a typed error
// describing the first validation failure encountered.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = "127.0.0.1:8475"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Duration(500 * time.Millisecond)
	}
}

// validate checks that all required fields are populated and that enumerated
// fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	if !validJournalDrivers[cfg.Journal.Driver] {
		errs = append(errs, fmt.Errorf("journal.driver must be one of sqlite, postgres; got %q", cfg.Journal.Driver))
	}
	if cfg.Journal.DSN == "" {
		errs = append(errs, errors.New("journal.dsn is required"))
	}

	if len(cfg.Watches) == 0 {
		errs = append(errs, errors.New("at least one watches entry is required"))
	}
	seen := make(map[string]bool, len(cfg.Watches))
	for i, w := range cfg.Watches {
		if w.Name == "" {
			errs = append(errs, fmt.Errorf("watches[%d].name is required", i))
		}
		if w.Path == "" {
			errs = append(errs, fmt.Errorf("watches[%d].path is required", i))
		}
		if w.Path != "" && seen[w.Path] {
			errs = append(errs, fmt.Errorf("watches[%d].path %q is duplicated; a path can be watched once", i, w.Path))
		}
		seen[w.Path] = true
	}

	return errors.Join(errs...)
}
