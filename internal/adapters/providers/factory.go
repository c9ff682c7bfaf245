package providers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/manthysbr/floral/internal/adapters/llm"
	"github.com/manthysbr/floral/internal/core/domain"
)

// Options tunes the providers built from settings.
type Options struct {
	Timeout   time.Duration // HTTP client timeout; zero = adapter default
	MockDelay time.Duration // artificial latency of the mock fallback
}

// Registry dispatches completion requests to one variant per provider.
// It hides mock/real selection from callers and can be rebuilt in place
// when settings change.
type Registry struct {
	mu       sync.RWMutex
	opts     Options
	variants map[domain.Provider]domain.CompletionProvider
	mocked   map[domain.Provider]bool
}

// Build creates a registry from app configuration.
func Build(config *domain.AppConfig, opts Options) *Registry {
	r := &Registry{opts: opts}
	r.Reload(config)
	return r
}

var _ domain.CompletionProvider = (*Registry)(nil)

// Reload swaps every variant for one built from config.
func (r *Registry) Reload(config *domain.AppConfig) {
	if config == nil {
		config = domain.DefaultConfig()
	}

	variants := make(map[domain.Provider]domain.CompletionProvider, 3)
	mocked := make(map[domain.Provider]bool, 3)
	for _, p := range domain.Providers() {
		v, isMock := buildVariant(p, config.For(p), r.opts)
		variants[p] = v
		mocked[p] = isMock
	}

	r.mu.Lock()
	r.variants = variants
	r.mocked = mocked
	r.mu.Unlock()
}

// Generate implements domain.CompletionProvider.
func (r *Registry) Generate(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	r.mu.RLock()
	v, ok := r.variants[req.Provider]
	r.mu.RUnlock()
	if !ok {
		return domain.Completion{}, domain.NewAPIError(req.Provider, "provider %q not supported", req.Provider)
	}
	return v.Generate(ctx, req)
}

// Mocked reports whether p answers through the mock fallback.
func (r *Registry) Mocked(p domain.Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mocked[p]
}

func buildVariant(p domain.Provider, s domain.ProviderSettings, opts Options) (domain.CompletionProvider, bool) {
	apiKey := strings.TrimSpace(s.APIKey)
	if apiKey == "" {
		return llm.NewMockProvider(p, opts.MockDelay), true
	}
	baseURL := strings.TrimSpace(s.BaseURL)
	switch p {
	case domain.ProviderGemini:
		return llm.NewGeminiProvider(baseURL, apiKey, opts.Timeout), false
	case domain.ProviderOpenAI:
		return llm.NewOpenAIProvider(baseURL, apiKey, opts.Timeout), false
	case domain.ProviderAnthropic:
		return llm.NewAnthropicProvider(baseURL, apiKey, opts.Timeout), false
	}
	return llm.NewMockProvider(p, opts.MockDelay), true
}
