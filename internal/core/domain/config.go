package domain

// ProviderSettings configures one LLM backend.
type ProviderSettings struct {
	APIKey  string `json:"api_key"`  // Encrypted in storage
	BaseURL string `json:"base_url"` // empty = vendor default
}

// ProviderConfig holds settings for all LLM backends.
type ProviderConfig struct {
	Gemini    ProviderSettings `json:"gemini"`
	OpenAI    ProviderSettings `json:"openai"`
	Anthropic ProviderSettings `json:"anthropic"`
}

// AppConfig is the runtime-editable settings document.
type AppConfig struct {
	Providers ProviderConfig `json:"providers"`
}

// DefaultConfig returns settings with no credentials, so every provider mocks.
func DefaultConfig() *AppConfig {
	return &AppConfig{}
}

// For returns the settings of one provider.
func (c *AppConfig) For(p Provider) ProviderSettings {
	switch p {
	case ProviderGemini:
		return c.Providers.Gemini
	case ProviderOpenAI:
		return c.Providers.OpenAI
	case ProviderAnthropic:
		return c.Providers.Anthropic
	}
	return ProviderSettings{}
}

// Set replaces the settings of one provider.
func (c *AppConfig) Set(p Provider, s ProviderSettings) {
	switch p {
	case ProviderGemini:
		c.Providers.Gemini = s
	case ProviderOpenAI:
		c.Providers.OpenAI = s
	case ProviderAnthropic:
		c.Providers.Anthropic = s
	}
}

// Clone returns a deep copy.
func (c *AppConfig) Clone() *AppConfig {
	cp := *c
	return &cp
}
