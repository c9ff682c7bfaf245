package domain

// ModelSpec describes a model offered for a provider.
type ModelSpec struct {
	ID       string   `json:"id"`   // "gemini-2.5-flash"
	Name     string   `json:"name"` // human-readable
	Provider Provider `json:"provider"`
}

// ModelCatalog returns the known models per provider. Step configuration
// is not validated against it; it only feeds model pickers.
func ModelCatalog() map[Provider][]ModelSpec {
	return map[Provider][]ModelSpec{
		ProviderGemini: {
			{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: ProviderGemini},
			{ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash Lite", Provider: ProviderGemini},
		},
		ProviderOpenAI: {
			{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: ProviderOpenAI},
			{ID: "gpt-4.1-mini", Name: "GPT-4.1 mini", Provider: ProviderOpenAI},
			{ID: "gpt-5-nano", Name: "GPT-5 nano", Provider: ProviderOpenAI},
		},
		ProviderAnthropic: {
			{ID: "claude-3-5-sonnet", Name: "Claude 3.5 Sonnet", Provider: ProviderAnthropic},
			{ID: "claude-3-haiku", Name: "Claude 3 Haiku", Provider: ProviderAnthropic},
		},
	}
}

// DefaultModel returns the first catalog model of a provider.
func DefaultModel(p Provider) string {
	models := ModelCatalog()[p]
	if len(models) == 0 {
		return ""
	}
	return models[0].ID
}

// DefaultAgents is the pipeline a new session starts with.
func DefaultAgents() []AgentStep {
	return []AgentStep{
		{
			ID:           "ag1",
			Name:         "Summarizer",
			Description:  "Condenses the input document into key points.",
			Provider:     ProviderGemini,
			Model:        "gemini-2.5-flash",
			MaxTokens:    4000,
			Temperature:  0.3,
			SystemPrompt: "Summarize the key points of the input text efficiently.",
			Status:       StepStatusIdle,
		},
		{
			ID:           "ag2",
			Name:         "Risk Analyst",
			Description:  "Identifies potential risks in the summary.",
			Provider:     ProviderOpenAI,
			Model:        "gpt-4o-mini",
			MaxTokens:    8000,
			Temperature:  0.5,
			SystemPrompt: "Identify potential risks and mitigation strategies based on the summary.",
			Status:       StepStatusIdle,
		},
		{
			ID:           "ag3",
			Name:         "Creative Refiner",
			Description:  "Rewrites content with a specific tone.",
			Provider:     ProviderOpenAI,
			Model:        "gpt-5-nano",
			MaxTokens:    12000,
			Temperature:  0.8,
			SystemPrompt: "Rewrite the content in a floral, poetic style.",
			Status:       StepStatusIdle,
		},
		{
			ID:           "ag4",
			Name:         "Translator",
			Description:  "Translates final output to Traditional Chinese.",
			Provider:     ProviderGemini,
			Model:        "gemini-2.5-flash-lite",
			MaxTokens:    2000,
			Temperature:  0.1,
			SystemPrompt: "Translate the content into Traditional Chinese.",
			Status:       StepStatusIdle,
		},
	}
}
