package config

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettings struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{data: map[string]string{}}
}

func (m *memSettings) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *memSettings) SaveSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func newTestStore(t *testing.T, repo *memSettings, vault *Vault, seed *domain.AppConfig) *SettingsStore {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	store, err := NewSettingsStore(logger, repo, vault, seed)
	require.NoError(t, err)
	return store
}

func TestSettingsStore_SeedAndEncryptAtRest(t *testing.T) {
	repo := newMemSettings()
	vault, err := NewEphemeralVault()
	require.NoError(t, err)

	seed := domain.DefaultConfig()
	seed.Providers.OpenAI.APIKey = "sk-openai-1234"
	store := newTestStore(t, repo, vault, seed)

	assert.Equal(t, "sk-openai-1234", store.GetConfig().Providers.OpenAI.APIKey)
	assert.Equal(t, "****1234", store.GetMaskedConfig().Providers.OpenAI.APIKey)
	assert.Empty(t, store.GetMaskedConfig().Providers.Gemini.APIKey)

	raw := repo.data[settingsKey]
	assert.NotContains(t, raw, "sk-openai-1234")
	var stored storedConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.True(t, strings.HasPrefix(stored.OpenAI.EncryptedAPIKey, "age:"))

	// A second store over the same repository decrypts the saved key.
	reloaded := newTestStore(t, repo, vault, nil)
	assert.Equal(t, "sk-openai-1234", reloaded.GetConfig().Providers.OpenAI.APIKey)
}

func TestSettingsStore_SavedKeyWinsOverSeed(t *testing.T) {
	repo := newMemSettings()
	vault, _ := NewEphemeralVault()
	store := newTestStore(t, repo, vault, nil)

	update := SettingsUpdate{}
	update.Providers.Gemini.APIKey = "saved-gemini"
	_, err := store.UpdateConfig(context.Background(), update)
	require.NoError(t, err)

	seed := domain.DefaultConfig()
	seed.Providers.Gemini.APIKey = "from-env"
	reloaded := newTestStore(t, repo, vault, seed)
	assert.Equal(t, "saved-gemini", reloaded.GetConfig().Providers.Gemini.APIKey)
}

func TestSettingsStore_UpdateMerge(t *testing.T) {
	vault, _ := NewEphemeralVault()
	seed := domain.DefaultConfig()
	seed.Providers.Gemini.APIKey = "gemini-key-abcd"
	seed.Providers.Anthropic.APIKey = "anthropic-key-wxyz"
	store := newTestStore(t, newMemSettings(), vault, seed)

	var notified *domain.AppConfig
	store.OnChange(func(cfg *domain.AppConfig) { notified = cfg })

	update := SettingsUpdate{Clear: []string{"anthropic"}}
	update.Providers.Gemini.APIKey = "****abcd" // masked value round-tripped by a client
	update.Providers.OpenAI.APIKey = "  sk-new  "
	update.Providers.OpenAI.BaseURL = "http://localhost:11434/v1"

	masked, err := store.UpdateConfig(context.Background(), update)
	require.NoError(t, err)

	cfg := store.GetConfig()
	assert.Equal(t, "gemini-key-abcd", cfg.Providers.Gemini.APIKey, "masked keys keep the stored key")
	assert.Equal(t, "sk-new", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Providers.OpenAI.BaseURL)
	assert.Empty(t, cfg.Providers.Anthropic.APIKey, "explicit clear removes the key")

	assert.Equal(t, "****abcd", masked.Providers.Gemini.APIKey)
	require.NotNil(t, notified)
	assert.Equal(t, "sk-new", notified.Providers.OpenAI.APIKey)
}

func TestSettingsStore_UpdateRejects(t *testing.T) {
	vault, _ := NewEphemeralVault()
	store := newTestStore(t, newMemSettings(), vault, nil)

	called := false
	store.OnChange(func(*domain.AppConfig) { called = true })

	_, err := store.UpdateConfig(context.Background(), SettingsUpdate{Clear: []string{"mistral"}})
	assert.Error(t, err)

	bad := SettingsUpdate{}
	bad.Providers.Gemini.BaseURL = "ftp://example.com"
	_, err = store.UpdateConfig(context.Background(), bad)
	assert.Error(t, err)

	assert.False(t, called)
}

func TestSettingsStore_CorruptBlobFallsBackToDefaults(t *testing.T) {
	repo := newMemSettings()
	repo.data[settingsKey] = "{not json"
	vault, _ := NewEphemeralVault()

	store := newTestStore(t, repo, vault, nil)
	assert.Equal(t, domain.DefaultConfig(), store.GetConfig())
}
