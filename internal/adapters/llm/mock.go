package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
)

const (
	DefaultMockDelay = 1500 * time.Millisecond
	MockTokens       = 150
	mockEchoRunes    = 30
)

// MockProvider answers without a network call. It stands in for any backend
// that has no credential configured and never returns an error.
type MockProvider struct {
	provider domain.Provider
	delay    time.Duration
}

func NewMockProvider(provider domain.Provider, delay time.Duration) *MockProvider {
	if delay < 0 {
		delay = 0
	}
	return &MockProvider{provider: provider, delay: delay}
}

var _ domain.CompletionProvider = (*MockProvider)(nil)

// Generate waits for the configured delay, or until ctx is done, then echoes the prompt.
func (p *MockProvider) Generate(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	name := p.provider
	if req.Provider != "" {
		name = req.Provider
	}

	echo := []rune(req.UserPrompt)
	if len(echo) > mockEchoRunes {
		echo = echo[:mockEchoRunes]
	}

	text := fmt.Sprintf("[MOCK %s] Response to: \"%s...\"\n[Images detected: %d]\n\n(Please provide a valid API Key in settings for real responses.)",
		strings.ToUpper(string(name)), string(echo), len(req.Images))

	return domain.Completion{Text: text, Tokens: MockTokens}, nil
}
