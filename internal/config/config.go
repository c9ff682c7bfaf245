package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Provider credentials here only seed
// the settings store; runtime edits go through SettingsStore.
type Config struct {
	Listen       string           `yaml:"listen"`
	LogFormat    string           `yaml:"log_format"`
	LogLevel     string           `yaml:"log_level"`
	Database     string           `yaml:"database"`
	IdentityPath string           `yaml:"identity_path"`
	AgentsFile   string           `yaml:"agents_file"`
	CORSOrigins  []string         `yaml:"cors_origins"`
	Provider     ProviderOptions  `yaml:"provider"`
	Providers    ProviderKeys     `yaml:"providers"`
	Rasterizer   RasterizerConfig `yaml:"rasterizer"`
}

type ProviderOptions struct {
	Timeout   string `yaml:"timeout"`
	MockDelay string `yaml:"mock_delay"`
}

type ProviderKey struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type ProviderKeys struct {
	Gemini    ProviderKey `yaml:"gemini"`
	OpenAI    ProviderKey `yaml:"openai"`
	Anthropic ProviderKey `yaml:"anthropic"`
}

type RasterizerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Image   string `yaml:"image"`
	DPI     int    `yaml:"dpi"`
	Timeout string `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:      ":8080",
		LogFormat:   "json",
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		Provider: ProviderOptions{
			Timeout:   "120s",
			MockDelay: "1.5s",
		},
		Rasterizer: RasterizerConfig{
			Enabled: true,
			Image:   "minidocks/poppler:latest",
			DPI:     108,
			Timeout: "60s",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "FLORAL_LISTEN")
	set(&c.LogFormat, "FLORAL_LOG_FORMAT")
	set(&c.LogLevel, "FLORAL_LOG_LEVEL")
	set(&c.Database, "FLORAL_DATABASE")
	set(&c.IdentityPath, "FLORAL_IDENTITY_PATH")
	set(&c.AgentsFile, "FLORAL_AGENTS_FILE")
	set(&c.Rasterizer.Image, "FLORAL_RASTERIZER_IMAGE")
	set(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	set(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	if v := strings.ToLower(strings.TrimSpace(getenv("FLORAL_RASTERIZER_ENABLED"))); v != "" {
		c.Rasterizer.Enabled = v == "1" || v == "true" || v == "yes"
	}
}

// Validate checks formats and durations.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	for name, v := range map[string]string{
		"provider.timeout":    c.Provider.Timeout,
		"provider.mock_delay": c.Provider.MockDelay,
		"rasterizer.timeout":  c.Rasterizer.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Rasterizer.Enabled {
		if c.Rasterizer.Image == "" {
			return fmt.Errorf("rasterizer.image is required when the rasterizer is enabled")
		}
		if c.Rasterizer.DPI <= 0 {
			return fmt.Errorf("rasterizer.dpi must be positive")
		}
	}
	return nil
}

// ProviderTimeout is the HTTP client timeout for completion calls.
func (c *Config) ProviderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Provider.Timeout)
	return d
}

// MockDelay is the latency of the credential-less fallback.
func (c *Config) MockDelay() time.Duration {
	d, _ := time.ParseDuration(c.Provider.MockDelay)
	return d
}

// RasterizerTimeout bounds one PDF conversion.
func (c *Config) RasterizerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Rasterizer.Timeout)
	return d
}

// Seed converts the file and environment credentials into app settings.
func (c *Config) Seed() *domain.AppConfig {
	return &domain.AppConfig{Providers: domain.ProviderConfig{
		Gemini:    domain.ProviderSettings{APIKey: c.Providers.Gemini.APIKey, BaseURL: c.Providers.Gemini.BaseURL},
		OpenAI:    domain.ProviderSettings{APIKey: c.Providers.OpenAI.APIKey, BaseURL: c.Providers.OpenAI.BaseURL},
		Anthropic: domain.ProviderSettings{APIKey: c.Providers.Anthropic.APIKey, BaseURL: c.Providers.Anthropic.BaseURL},
	}}
}
