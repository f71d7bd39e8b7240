package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/gulp/internal/progress"
)

// Config defines configuration for the gulp CLI.
type Config struct {
	Directory string     `yaml:"directory"`
	Quiet     bool       `yaml:"quiet"`
	LimitRate int64      `yaml:"limit_rate"` // bytes per second, 0 = unlimited
	Mirror    string     `yaml:"mirror"`
	History   string     `yaml:"history"`
	NoHistory bool       `yaml:"no_history"`
	LogLevel  string     `yaml:"log_level"`
	HTTP      HTTPConfig `yaml:"http"`
}

// HTTPConfig defines connection-level HTTP settings.
type HTTPConfig struct {
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	TLSTimeout    time.Duration `yaml:"tls_timeout"`
	HeaderTimeout time.Duration `yaml:"header_timeout"`
	UserAgent     string        `yaml:"user_agent"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Directory: ".",
		History:   DefaultHistoryPath(),
		LogLevel:  "warn",
		HTTP: HTTPConfig{
			DialTimeout:   30 * time.Second,
			TLSTimeout:    10 * time.Second,
			HeaderTimeout: 30 * time.Second,
			UserAgent:     "gulp",
		},
	}
}

// DefaultHistoryPath returns the history database location under the user
// cache directory, or "" if there is none.
func DefaultHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gulp", "history.db")
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	Directory string         `yaml:"directory"`
	Quiet     bool           `yaml:"quiet"`
	LimitRate string         `yaml:"limit_rate"`
	Mirror    string         `yaml:"mirror"`
	History   string         `yaml:"history"`
	NoHistory bool           `yaml:"no_history"`
	LogLevel  string         `yaml:"log_level"`
	HTTP      yamlHTTPConfig `yaml:"http"`
}

type yamlHTTPConfig struct {
	DialTimeout   string `yaml:"dial_timeout"`
	TLSTimeout    string `yaml:"tls_timeout"`
	HeaderTimeout string `yaml:"header_timeout"`
	UserAgent     string `yaml:"user_agent"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Directory != "" {
		cfg.Directory = yc.Directory
	}
	cfg.Quiet = yc.Quiet
	if yc.LimitRate != "" {
		n, err := progress.ParseBytes(yc.LimitRate)
		if err != nil {
			return Config{}, fmt.Errorf("parse limit_rate: %w", err)
		}
		cfg.LimitRate = n
	}
	if yc.Mirror != "" {
		cfg.Mirror = yc.Mirror
	}
	if yc.History != "" {
		cfg.History = yc.History
	}
	cfg.NoHistory = yc.NoHistory
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.HTTP.UserAgent != "" {
		cfg.HTTP.UserAgent = yc.HTTP.UserAgent
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"http.dial_timeout", yc.HTTP.DialTimeout, &cfg.HTTP.DialTimeout},
		{"http.tls_timeout", yc.HTTP.TLSTimeout, &cfg.HTTP.TLSTimeout},
		{"http.header_timeout", yc.HTTP.HeaderTimeout, &cfg.HTTP.HeaderTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GULP_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GULP_DIRECTORY"); v != "" {
		c.Directory = v
	}
	if v := os.Getenv("GULP_QUIET"); v != "" {
		c.Quiet = v == "true" || v == "1"
	}
	if v := os.Getenv("GULP_LIMIT_RATE"); v != "" {
		n, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse GULP_LIMIT_RATE: %w", err)
		}
		c.LimitRate = n
	}
	if v := os.Getenv("GULP_MIRROR"); v != "" {
		c.Mirror = v
	}
	if v := os.Getenv("GULP_HISTORY"); v != "" {
		c.History = v
	}
	if v := os.Getenv("GULP_NO_HISTORY"); v != "" {
		c.NoHistory = v == "true" || v == "1"
	}
	if v := os.Getenv("GULP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GULP_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"GULP_HTTP_DIAL_TIMEOUT", &c.HTTP.DialTimeout},
		{"GULP_HTTP_TLS_TIMEOUT", &c.HTTP.TLSTimeout},
		{"GULP_HTTP_HEADER_TIMEOUT", &c.HTTP.HeaderTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.env, err)
		}
		*d.dst = dur
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.New("config: directory is required")
	}
	if c.LimitRate < 0 {
		return errors.New("config: limit_rate must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.HTTP.DialTimeout < 0 || c.HTTP.TLSTimeout < 0 || c.HTTP.HeaderTimeout < 0 {
		return errors.New("config: http timeouts must not be negative")
	}
	if c.Mirror != "" {
		u, err := url.Parse(c.Mirror)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("config: mirror must be a bucket URL such as s3://bucket, got %q", c.Mirror)
		}
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Directory != "" {
		c.Directory = override.Directory
	}
	if override.Quiet {
		c.Quiet = override.Quiet
	}
	if override.LimitRate != 0 {
		c.LimitRate = override.LimitRate
	}
	if override.Mirror != "" {
		c.Mirror = override.Mirror
	}
	if override.History != "" {
		c.History = override.History
	}
	if override.NoHistory {
		c.NoHistory = override.NoHistory
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.HTTP.DialTimeout != 0 {
		c.HTTP.DialTimeout = override.HTTP.DialTimeout
	}
	if override.HTTP.TLSTimeout != 0 {
		c.HTTP.TLSTimeout = override.HTTP.TLSTimeout
	}
	if override.HTTP.HeaderTimeout != 0 {
		c.HTTP.HeaderTimeout = override.HTTP.HeaderTimeout
	}
	if override.HTTP.UserAgent != "" {
		c.HTTP.UserAgent = override.HTTP.UserAgent
	}
	return c
}

// HistoryEnabled reports whether downloads should be recorded.
func (c *Config) HistoryEnabled() bool {
	return !c.NoHistory && c.History != ""
}
