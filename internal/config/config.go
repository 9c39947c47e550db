// Package config provides configuration loading for glimpsed.
//
// Configuration is loaded from a YAML file, then overridden with environment
// variables. All pipeline feature flags (capture, OCR, semantic analysis,
// commitment tracking) live here so the orchestrator can skip stages cleanly.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Built-in privacy deny-list. The capture source skips any active app whose
// name contains one of these substrings (case-insensitive). User-configured
// exclusions are merged on top, never instead.
var builtinExcludedApps = []string{
	"1password",
	"keychain",
	"bitwarden",
	"lastpass",
	"dashlane",
	"keeper",
	"banking",
	"wallet",
	"health",
	"private browsing",
	"incognito",
}

// Config holds the complete glimpsed configuration.
type Config struct {
	// Enabled is the master switch for the whole pipeline.
	Enabled bool `koanf:"enabled"`

	Capture  CaptureConfig  `koanf:"capture"`
	OCR      OCRConfig      `koanf:"ocr"`
	Analyzer AnalyzerConfig `koanf:"analyzer"`
	FollowUp FollowUpConfig `koanf:"followup"`
	Store    StoreConfig    `koanf:"store"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// CaptureConfig holds screenshot capture configuration.
type CaptureConfig struct {
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	ExcludedApps []string      `koanf:"excluded_apps"`
}

// OCRConfig holds text extraction configuration.
type OCRConfig struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout"`
}

// AnalyzerConfig holds semantic analysis configuration.
type AnalyzerConfig struct {
	// Semantic gates the LLM tier. The heuristic tier always runs.
	Semantic      bool   `koanf:"semantic"`
	Provider      string `koanf:"provider"` // "heuristic", "anthropic", "openai"
	APIKey        Secret `koanf:"api_key"`
	Model         string `koanf:"model"`
	BaseURL       string `koanf:"base_url"`
	MinTextLength int    `koanf:"min_text_length"`
}

// FollowUpConfig holds follow-up matcher configuration.
type FollowUpConfig struct {
	Enabled      bool          `koanf:"enabled"`
	ScanInterval time.Duration `koanf:"scan_interval"`
	StartupDelay time.Duration `koanf:"startup_delay"`
}

// StoreConfig holds the embedded store configuration.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// ExclusionList returns the merged app exclusion list: built-in deny-list
// plus user-configured entries.
func (c *CaptureConfig) ExclusionList() []string {
	merged := make([]string, 0, len(builtinExcludedApps)+len(c.ExcludedApps))
	merged = append(merged, builtinExcludedApps...)
	merged = append(merged, c.ExcludedApps...)
	return merged
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Capture.Interval <= 0 {
		return errors.New("capture interval must be positive")
	}
	if c.Capture.Timeout <= 0 {
		return errors.New("capture timeout must be positive")
	}
	if c.OCR.Timeout <= 0 {
		return errors.New("ocr timeout must be positive")
	}
	switch c.Analyzer.Provider {
	case "heuristic", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown analyzer provider: %q", c.Analyzer.Provider)
	}
	if c.Analyzer.MinTextLength < 0 {
		return errors.New("analyzer min_text_length cannot be negative")
	}
	if c.FollowUp.ScanInterval <= 0 {
		return errors.New("followup scan interval must be positive")
	}
	if c.Store.Path == "" {
		return errors.New("store path is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Capture.Interval == 0 {
		cfg.Capture.Interval = 10 * time.Second
	}
	if cfg.Capture.Timeout == 0 {
		cfg.Capture.Timeout = 5 * time.Second
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 30 * time.Second
	}
	if cfg.Analyzer.Provider == "" {
		cfg.Analyzer.Provider = "heuristic"
	}
	if cfg.Analyzer.MinTextLength == 0 {
		cfg.Analyzer.MinTextLength = 50
	}
	if cfg.FollowUp.ScanInterval == 0 {
		cfg.FollowUp.ScanInterval = 5 * time.Minute
	}
	if cfg.FollowUp.StartupDelay == 0 {
		cfg.FollowUp.StartupDelay = 30 * time.Second
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath()
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9190
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Default returns a configuration with all defaults applied and the pipeline
// enabled. Used by tests and as the base before file/env loading.
func Default() *Config {
	cfg := &Config{
		Enabled: true,
		OCR:     OCRConfig{Enabled: true},
		Analyzer: AnalyzerConfig{
			Semantic: false,
		},
		FollowUp: FollowUpConfig{Enabled: true},
	}
	applyDefaults(cfg)
	return cfg
}
