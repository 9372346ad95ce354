// Package config loads the client configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the argus binaries.
type Config struct {
	// BaseURL is the portal root, e.g. "http://localhost:8800".
	BaseURL string `mapstructure:"base_url"`
	// StateDir holds the session state file.
	StateDir string `mapstructure:"state_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// StatusInterval is the telescope status polling cadence.
	StatusInterval time.Duration `mapstructure:"status_interval"`
	// SyncInterval is the clock sync freshness window.
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// Load reads the configuration. Resolution order: explicit file path,
// then ~/.argus/config.yaml if present, then ARGUS_* environment
// variables, then defaults. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("base_url", "http://localhost:8800")
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("status_interval", 5*time.Second)
	v.SetDefault("sync_interval", 5*time.Minute)

	v.SetEnvPrefix("ARGUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultStateDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("status_interval must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	return nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".argus"
	}
	return filepath.Join(home, ".argus")
}
