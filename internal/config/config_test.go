package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Directory != "." {
		t.Errorf("expected default directory '.', got %q", cfg.Directory)
	}
	if cfg.Quiet {
		t.Error("expected progress enabled by default")
	}
	if cfg.LimitRate != 0 {
		t.Errorf("expected unlimited rate by default, got %d", cfg.LimitRate)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected default log level warn, got %q", cfg.LogLevel)
	}
	if cfg.HTTP.DialTimeout != 30*time.Second {
		t.Errorf("expected default dial timeout 30s, got %v", cfg.HTTP.DialTimeout)
	}
	if cfg.HTTP.TLSTimeout != 10*time.Second {
		t.Errorf("expected default TLS timeout 10s, got %v", cfg.HTTP.TLSTimeout)
	}
	if cfg.HTTP.HeaderTimeout != 30*time.Second {
		t.Errorf("expected default header timeout 30s, got %v", cfg.HTTP.HeaderTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
directory: ./models
quiet: true
limit_rate: 5MB
mirror: mem://
history: /tmp/gulp-history.db
log_level: debug
http:
  dial_timeout: 5s
  tls_timeout: 2s
  header_timeout: 1m
  user_agent: gulp-ci
`
	// Create temp file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Directory != "./models" {
		t.Errorf("expected directory ./models, got %q", cfg.Directory)
	}
	if !cfg.Quiet {
		t.Error("expected quiet true")
	}
	if cfg.LimitRate != 5*1000*1000 {
		t.Errorf("expected limit rate 5MB, got %d", cfg.LimitRate)
	}
	if cfg.Mirror != "mem://" {
		t.Errorf("expected mirror mem://, got %q", cfg.Mirror)
	}
	if cfg.History != "/tmp/gulp-history.db" {
		t.Errorf("expected history path, got %q", cfg.History)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.HTTP.DialTimeout != 5*time.Second {
		t.Errorf("expected dial timeout 5s, got %v", cfg.HTTP.DialTimeout)
	}
	if cfg.HTTP.TLSTimeout != 2*time.Second {
		t.Errorf("expected TLS timeout 2s, got %v", cfg.HTTP.TLSTimeout)
	}
	if cfg.HTTP.HeaderTimeout != time.Minute {
		t.Errorf("expected header timeout 1m, got %v", cfg.HTTP.HeaderTimeout)
	}
	if cfg.HTTP.UserAgent != "gulp-ci" {
		t.Errorf("expected user agent gulp-ci, got %q", cfg.HTTP.UserAgent)
	}
}

func TestLoadFromYAMLKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Directory != "." {
		t.Errorf("expected default directory preserved, got %q", cfg.Directory)
	}
	if cfg.HTTP.DialTimeout != 30*time.Second {
		t.Errorf("expected default dial timeout preserved, got %v", cfg.HTTP.DialTimeout)
	}
}

func TestLoadFromYAMLInvalidValues(t *testing.T) {
	for name, content := range map[string]string{
		"limit_rate":   "limit_rate: fast\n",
		"dial_timeout": "http:\n  dial_timeout: soon\n",
	} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("write config file: %v", err)
			}
			if _, err := LoadFromFile(configPath); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set env vars
	t.Setenv("GULP_DIRECTORY", "/srv/downloads")
	t.Setenv("GULP_QUIET", "1")
	t.Setenv("GULP_LIMIT_RATE", "1MiB")
	t.Setenv("GULP_MIRROR", "file:///tmp/mirror")
	t.Setenv("GULP_NO_HISTORY", "true")
	t.Setenv("GULP_LOG_LEVEL", "error")
	t.Setenv("GULP_HTTP_HEADER_TIMEOUT", "500ms")
	t.Setenv("GULP_USER_AGENT", "gulp-env")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Directory != "/srv/downloads" {
		t.Errorf("expected directory /srv/downloads, got %q", cfg.Directory)
	}
	if !cfg.Quiet {
		t.Error("expected quiet true")
	}
	if cfg.LimitRate != 1024*1024 {
		t.Errorf("expected limit rate 1MiB, got %d", cfg.LimitRate)
	}
	if cfg.Mirror != "file:///tmp/mirror" {
		t.Errorf("expected mirror from env, got %q", cfg.Mirror)
	}
	if cfg.HistoryEnabled() {
		t.Error("expected history disabled")
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected log level error, got %q", cfg.LogLevel)
	}
	if cfg.HTTP.HeaderTimeout != 500*time.Millisecond {
		t.Errorf("expected header timeout 500ms, got %v", cfg.HTTP.HeaderTimeout)
	}
	if cfg.HTTP.UserAgent != "gulp-env" {
		t.Errorf("expected user agent gulp-env, got %q", cfg.HTTP.UserAgent)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("GULP_HTTP_DIAL_TIMEOUT", "later")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "valid mirror", mutate: func(c *Config) { c.Mirror = "s3://bucket?region=us-east-1" }, wantErr: false},
		{name: "missing directory", mutate: func(c *Config) { c.Directory = "" }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.LimitRate = -1 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.HTTP.DialTimeout = -time.Second }, wantErr: true},
		{name: "mirror without scheme", mutate: func(c *Config) { c.Mirror = "my-bucket" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.Mirror = "gs://bucket"

	override := Config{
		Directory: "/data", // Override directory
		LimitRate: 1000,
		// Leave other fields at zero values
	}

	merged := base.Merge(override)

	// Should keep base values for non-overridden fields
	if merged.Mirror != "gs://bucket" {
		t.Errorf("expected Mirror preserved, got %s", merged.Mirror)
	}
	if merged.LogLevel != "warn" {
		t.Errorf("expected LogLevel preserved, got %s", merged.LogLevel)
	}
	if merged.HTTP.DialTimeout != 30*time.Second {
		t.Errorf("expected DialTimeout preserved, got %v", merged.HTTP.DialTimeout)
	}

	// Should use override values
	if merged.Directory != "/data" {
		t.Errorf("expected Directory overridden to /data, got %s", merged.Directory)
	}
	if merged.LimitRate != 1000 {
		t.Errorf("expected LimitRate overridden to 1000, got %d", merged.LimitRate)
	}
}

func TestHistoryEnabled(t *testing.T) {
	cfg := Default()
	cfg.History = "/tmp/h.db"
	if !cfg.HistoryEnabled() {
		t.Error("expected history enabled")
	}
	cfg.NoHistory = true
	if cfg.HistoryEnabled() {
		t.Error("expected history disabled by NoHistory")
	}
	cfg.NoHistory = false
	cfg.History = ""
	if cfg.HistoryEnabled() {
		t.Error("expected history disabled without a path")
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
