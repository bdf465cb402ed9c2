package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

// Config is the whole configuration file, loaded once at start-up.
type Config struct {
	SpeedTest SpeedTestConfig `toml:"cloudflare_speed_test_config" yaml:"cloudflare_speed_test_config"`

	// Providers holds raw settings per provider id. Values may reference
	// ${ENV_VAR} or keyring:<user>; see ProviderSettings.
	Providers map[string]map[string]any `toml:"dns_provider" yaml:"dns_provider"`

	// DNS keeps the [[dns]] tables as written so that a broken entry does
	// not fail the whole load.
	DNS []map[string]any `toml:"dns" yaml:"dns"`

	Retry   RetryConfig   `toml:"retry" yaml:"retry"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// SpeedTestConfig locates the CloudflareSpeedTest result file.
type SpeedTestConfig struct {
	ResultFile string `toml:"result_file" yaml:"result_file"`
}

// RetryConfig controls how often the runner retries a transient failure.
type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts" yaml:"max_attempts"`
	BaseDelay   string `toml:"base_delay" yaml:"base_delay"`
	MaxDelay    string `toml:"max_delay" yaml:"max_delay"`
}

// MetricsConfig controls where run metrics are written.
type MetricsConfig struct {
	Textfile string `toml:"textfile" yaml:"textfile"`
}

// DefaultResultFile is used when the config names no result file.
const DefaultResultFile = "result.csv"

// Load reads the configuration file at path. Files ending in .yaml or .yml
// are parsed as YAML, anything else as TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Config{
		Retry: RetryConfig{MaxAttempts: 1, BaseDelay: "500ms", MaxDelay: "5s"},
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if cfg.SpeedTest.ResultFile == "" {
		cfg.SpeedTest.ResultFile = DefaultResultFile
	}
	if _, _, err := cfg.Retry.Delays(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Delays parses the base and max retry delays.
func (r RetryConfig) Delays() (base, max time.Duration, err error) {
	if r.BaseDelay != "" {
		if base, err = time.ParseDuration(r.BaseDelay); err != nil {
			return 0, 0, fmt.Errorf("retry: invalid base_delay %q: %w", r.BaseDelay, err)
		}
	}
	if r.MaxDelay != "" {
		if max, err = time.ParseDuration(r.MaxDelay); err != nil {
			return 0, 0, fmt.Errorf("retry: invalid max_delay %q: %w", r.MaxDelay, err)
		}
	}
	return base, max, nil
}

// Entries returns the [[dns]] tables as DNSEntry values, in file order.
func (c *Config) Entries() []DNSEntry {
	entries := make([]DNSEntry, 0, len(c.DNS))
	for i, raw := range c.DNS {
		entries = append(entries, parseEntry(i, raw))
	}
	return entries
}
