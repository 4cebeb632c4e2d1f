package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"instancesearch/internal/selectors"
)

// DefaultFileName is looked up in the working directory when no path is given
const DefaultFileName = ".instancesearch.toml"

// Config represents the application configuration
type Config struct {
	Version int            `toml:"version" yaml:"version"`
	Okapi   OkapiSettings  `toml:"okapi" yaml:"okapi"`
	Search  SearchSettings `toml:"search" yaml:"search"`
	Logging LogSettings    `toml:"logging" yaml:"logging"`
	UI      UISettings     `toml:"ui" yaml:"ui"`
}

// OkapiSettings locate the lookup service
type OkapiSettings struct {
	URL    string `toml:"url" yaml:"url"`
	Tenant string `toml:"tenant" yaml:"tenant"`
}

// SearchSettings control how the list is filtered and populated
type SearchSettings struct {
	Policy     string `toml:"policy" yaml:"policy"`           // client or server
	StaleGuard bool   `toml:"stale_guard" yaml:"stale_guard"` // ignore results of superseded lookups
	Timeout    string `toml:"timeout" yaml:"timeout"`         // Go duration, empty or "0" for none
}

// LogSettings configure the log file
type LogSettings struct {
	Level string `toml:"level" yaml:"level"` // debug, info, warn, error
	File  string `toml:"file" yaml:"file"`
}

// UISettings represents UI-related configuration
type UISettings struct {
	ShowIDs bool `toml:"show_ids" yaml:"show_ids"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Okapi: OkapiSettings{
			URL:    "http://localhost:9130",
			Tenant: "diku",
		},
		Search: SearchSettings{
			Policy: string(selectors.PolicyServer),
		},
		Logging: LogSettings{
			Level: "info",
			File:  "instancesearch.log",
		},
		UI: UISettings{
			ShowIDs: true,
		},
	}
}

// LoadFromPath loads configuration from path on top of the defaults.
// The format follows the extension: .yaml/.yml is YAML, anything else TOML.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns the defaults otherwise
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadFromPath(path)
}

// SaveToPath saves configuration to a specific path
func SaveToPath(cfg *Config, path string) error {
	// Ensure config directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration can drive the application
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Okapi.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("okapi.url %q is not an absolute URL", c.Okapi.URL))
	}
	if strings.TrimSpace(c.Okapi.Tenant) == "" {
		errs = append(errs, errors.New("okapi.tenant is required"))
	}
	if _, err := c.FilterPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RequestTimeout(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// FilterPolicy returns the parsed search policy
func (c *Config) FilterPolicy() (selectors.Policy, error) {
	return selectors.ParsePolicy(c.Search.Policy)
}

// RequestTimeout returns the parsed lookup timeout; zero means none
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Search.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Search.Timeout)
	if err != nil {
		return 0, fmt.Errorf("search.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("search.timeout must not be negative")
	}
	return d, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
