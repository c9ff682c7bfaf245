package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/ports"
)

const settingsKey = "app_config"

// OnChangeFunc is called when settings are updated.
type OnChangeFunc func(cfg *domain.AppConfig)

// SettingsUpdate is a full settings document plus providers whose key
// should be removed. Empty or masked keys keep the stored key.
type SettingsUpdate struct {
	Providers domain.ProviderConfig `json:"providers"`
	Clear     []string              `json:"clear,omitempty"`
}

// SettingsStore manages provider credentials: encrypted at rest, masked on read.
type SettingsStore struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	vault    *Vault
	repo     ports.SettingsRepository
	config   *domain.AppConfig
	onChange []OnChangeFunc
}

// NewSettingsStore loads saved settings. Keys missing from storage are taken
// from seed, which carries credentials from the config file and environment.
func NewSettingsStore(logger *slog.Logger, repo ports.SettingsRepository, vault *Vault, seed *domain.AppConfig) (*SettingsStore, error) {
	store := &SettingsStore{
		logger: logger,
		vault:  vault,
		repo:   repo,
	}

	ctx := context.Background()
	cfg, err := store.load(ctx)
	if err != nil {
		logger.Info("no saved settings found, using defaults", "reason", err)
		cfg = domain.DefaultConfig()
	}
	if seed != nil {
		for _, p := range domain.Providers() {
			saved, fromSeed := cfg.For(p), seed.For(p)
			if saved.APIKey == "" {
				saved.APIKey = fromSeed.APIKey
			}
			if saved.BaseURL == "" {
				saved.BaseURL = fromSeed.BaseURL
			}
			cfg.Set(p, saved)
		}
	}

	if err := store.save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	store.config = cfg
	return store, nil
}

// OnChange registers a callback for when settings are updated.
func (s *SettingsStore) OnChange(fn OnChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// GetConfig returns a copy of the current config with plaintext secrets.
func (s *SettingsStore) GetConfig() *domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// GetMaskedConfig returns config safe for API responses.
func (s *SettingsStore) GetMaskedConfig() *domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := s.config.Clone()
	for _, p := range domain.Providers() {
		ps := cp.For(p)
		ps.APIKey = MaskSecret(ps.APIKey)
		cp.Set(p, ps)
	}
	return cp
}

// UpdateConfig merges, persists and notifies listeners.
func (s *SettingsStore) UpdateConfig(ctx context.Context, update SettingsUpdate) (*domain.AppConfig, error) {
	cleared := make(map[domain.Provider]bool, len(update.Clear))
	for _, name := range update.Clear {
		p, err := domain.ParseProvider(name)
		if err != nil {
			return nil, fmt.Errorf("invalid clear entry: %w", err)
		}
		cleared[p] = true
	}

	s.mu.Lock()
	next := &domain.AppConfig{Providers: update.Providers}
	for _, p := range domain.Providers() {
		ps := next.For(p)
		ps.APIKey = strings.TrimSpace(ps.APIKey)
		ps.BaseURL = strings.TrimSpace(ps.BaseURL)
		switch {
		case cleared[p]:
			ps.APIKey = ""
		case ps.APIKey == "" || isMasked(ps.APIKey):
			ps.APIKey = s.config.For(p).APIKey
		}
		if ps.BaseURL != "" && !strings.HasPrefix(ps.BaseURL, "http://") && !strings.HasPrefix(ps.BaseURL, "https://") {
			s.mu.Unlock()
			return nil, fmt.Errorf("%s base_url must start with http:// or https://", p)
		}
		next.Set(p, ps)
	}

	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.config = next
	callbacks := append([]OnChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	s.logger.Info("settings updated",
		"gemini_key", next.Providers.Gemini.APIKey != "",
		"openai_key", next.Providers.OpenAI.APIKey != "",
		"anthropic_key", next.Providers.Anthropic.APIKey != "",
	)

	for _, fn := range callbacks {
		fn(next.Clone())
	}
	return s.GetMaskedConfig(), nil
}

func (s *SettingsStore) load(ctx context.Context) (*domain.AppConfig, error) {
	raw, err := s.repo.GetSetting(ctx, settingsKey)
	if err != nil {
		return nil, err
	}

	var stored storedConfig
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg := domain.DefaultConfig()
	for _, p := range domain.Providers() {
		sp := stored.get(p)
		ps := domain.ProviderSettings{BaseURL: sp.BaseURL}
		if sp.EncryptedAPIKey != "" {
			key, err := s.vault.Decrypt(sp.EncryptedAPIKey)
			if err != nil {
				s.logger.Warn("failed to decrypt API key", "provider", p, "error", err)
			} else {
				ps.APIKey = key
			}
		}
		cfg.Set(p, ps)
	}
	return cfg, nil
}

func (s *SettingsStore) save(ctx context.Context, cfg *domain.AppConfig) error {
	stored := storedConfig{}
	for _, p := range domain.Providers() {
		ps := cfg.For(p)
		enc, err := s.vault.Encrypt(ps.APIKey)
		if err != nil {
			return fmt.Errorf("encrypt %s API key: %w", p, err)
		}
		stored.set(p, storedProviderConfig{BaseURL: ps.BaseURL, EncryptedAPIKey: enc})
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.repo.SaveSetting(ctx, settingsKey, string(raw))
}

// storedConfig is the DB representation with encrypted fields
type storedConfig struct {
	Gemini    storedProviderConfig `json:"gemini"`
	OpenAI    storedProviderConfig `json:"openai"`
	Anthropic storedProviderConfig `json:"anthropic"`
}

type storedProviderConfig struct {
	BaseURL         string `json:"base_url,omitempty"`
	EncryptedAPIKey string `json:"encrypted_api_key,omitempty"`
}

func (c *storedConfig) get(p domain.Provider) storedProviderConfig {
	switch p {
	case domain.ProviderOpenAI:
		return c.OpenAI
	case domain.ProviderAnthropic:
		return c.Anthropic
	default:
		return c.Gemini
	}
}

func (c *storedConfig) set(p domain.Provider, v storedProviderConfig) {
	switch p {
	case domain.ProviderOpenAI:
		c.OpenAI = v
	case domain.ProviderAnthropic:
		c.Anthropic = v
	default:
		c.Gemini = v
	}
}
