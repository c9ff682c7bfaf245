package domain

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies an LLM backend family.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists every supported backend in display order.
func Providers() []Provider {
	return []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic}
}

// Valid reports whether p is one of the known backends.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// ParseProvider normalises a provider name, rejecting unknown values.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// ProviderForModel infers the backend from a model name prefix.
// Used by document analysis and note tools where only a model is chosen.
func ProviderForModel(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt"):
		return ProviderOpenAI
	case strings.HasPrefix(m, "claude"):
		return ProviderAnthropic
	default:
		return ProviderGemini
	}
}

// CompletionRequest is a single call to an LLM backend.
type CompletionRequest struct {
	Provider     Provider
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	// Images are data URLs ("data:image/jpeg;base64,...").
	Images []string
}

// Completion is the successful result of a CompletionRequest.
type Completion struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// CompletionProvider generates text for a request.
// Implementations return *APIError on failure and never panic.
type CompletionProvider interface {
	Generate(ctx context.Context, req CompletionRequest) (Completion, error)
}
