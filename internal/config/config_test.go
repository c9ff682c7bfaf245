package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 120*time.Second, cfg.ProviderTimeout())
	assert.Equal(t, 1500*time.Millisecond, cfg.MockDelay())
	assert.Equal(t, 108, cfg.Rasterizer.DPI)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floral.yaml")
	content := `
listen: ":9090"
log_format: text
database: /var/lib/floral/floral.duckdb
providers:
  gemini:
    api_key: from-file
  openai:
    base_url: http://localhost:11434/v1
rasterizer:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("FLORAL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Rasterizer.Enabled)
	assert.Equal(t, "120s", cfg.Provider.Timeout, "unset keys keep defaults")

	seed := cfg.Seed()
	assert.Equal(t, "from-file", seed.Providers.Gemini.APIKey)
	assert.Equal(t, "from-env", seed.Providers.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", seed.Providers.OpenAI.BaseURL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"timeout", func(c *Config) { c.Provider.Timeout = "soon" }},
		{"rasterizer image", func(c *Config) { c.Rasterizer.Image = "" }},
		{"rasterizer dpi", func(c *Config) { c.Rasterizer.DPI = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv_RasterizerToggle(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(func(key string) string {
		if key == "FLORAL_RASTERIZER_ENABLED" {
			return "false"
		}
		return ""
	})
	assert.False(t, cfg.Rasterizer.Enabled)
}
