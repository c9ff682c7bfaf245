package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_NoCredentialsMocksEverything(t *testing.T) {
	reg := Build(domain.DefaultConfig(), Options{})

	for _, p := range domain.Providers() {
		assert.True(t, reg.Mocked(p), "provider %s", p)

		got, err := reg.Generate(context.Background(), domain.CompletionRequest{Provider: p, UserPrompt: "hello"})
		require.NoError(t, err)
		assert.Equal(t, 150, got.Tokens)
		assert.True(t, strings.HasPrefix(got.Text, "[MOCK "+strings.ToUpper(string(p))+"]"))
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := Build(nil, Options{})

	_, err := reg.Generate(context.Background(), domain.CompletionRequest{Provider: "mistral"})
	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "not supported")
}

func TestRegistry_ReloadSwapsVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"real answer"}}],"usage":{"total_tokens":9}}`)
	}))
	defer srv.Close()

	reg := Build(domain.DefaultConfig(), Options{})
	require.True(t, reg.Mocked(domain.ProviderOpenAI))

	cfg := domain.DefaultConfig()
	cfg.Set(domain.ProviderOpenAI, domain.ProviderSettings{APIKey: "sk-live", BaseURL: srv.URL})
	reg.Reload(cfg)

	assert.False(t, reg.Mocked(domain.ProviderOpenAI))
	assert.True(t, reg.Mocked(domain.ProviderGemini))

	got, err := reg.Generate(context.Background(), domain.CompletionRequest{Provider: domain.ProviderOpenAI, UserPrompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "real answer", got.Text)
	assert.Equal(t, 9, got.Tokens)
}
