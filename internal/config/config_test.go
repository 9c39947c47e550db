package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Capture.Interval)
	assert.True(t, cfg.OCR.Enabled)
	assert.Equal(t, "heuristic", cfg.Analyzer.Provider)
	assert.Equal(t, 50, cfg.Analyzer.MinTextLength)
	assert.Equal(t, 5*time.Minute, cfg.FollowUp.ScanInterval)
	assert.Equal(t, 9190, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero capture interval", func(c *Config) { c.Capture.Interval = 0 }, "capture interval"},
		{"unknown provider", func(c *Config) { c.Analyzer.Provider = "skynet" }, "provider"},
		{"missing store path", func(c *Config) { c.Store.Path = "" }, "store path"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"zero scan interval", func(c *Config) { c.FollowUp.ScanInterval = 0 }, "scan interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Built-in privacy exclusions survive any user configuration.
func TestExclusionListMergesBuiltins(t *testing.T) {
	c := CaptureConfig{ExcludedApps: []string{"myapp"}}
	list := c.ExclusionList()

	assert.Contains(t, list, "1password")
	assert.Contains(t, list, "incognito")
	assert.Contains(t, list, "myapp")

	empty := CaptureConfig{}
	assert.NotEmpty(t, empty.ExclusionList())
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())

	data, err := json.Marshal(struct{ Key Secret }{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-super-secret")
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
enabled: true
capture:
  interval: 15s
  excluded_apps:
    - customvault
analyzer:
  provider: anthropic
  api_key: sk-test
server:
  port: 9999
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Capture.Interval)
	assert.Contains(t, cfg.Capture.ExclusionList(), "customvault")
	assert.Equal(t, "anthropic", cfg.Analyzer.Provider)
	assert.Equal(t, "sk-test", cfg.Analyzer.APIKey.Value())
	assert.Equal(t, 9999, cfg.Server.Port)

	// Unset fields still get defaults.
	assert.Equal(t, 5*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)
}

func TestLoadWithFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Capture.Interval)

	// Feature switches are on by default, same as Default().
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.OCR.Enabled)
	assert.True(t, cfg.FollowUp.Enabled)
}

// An explicit "enabled: false" survives loading; only the unset case
// defaults to on.
func TestLoadWithFileExplicitDisable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: false\nocr:\n  enabled: false\n"), 0o600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.OCR.Enabled)
	assert.True(t, cfg.FollowUp.Enabled, "unset switches still default to on")
}

func TestLoadWithFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analyzer:\n  provider: skynet\n"), 0o600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
}
