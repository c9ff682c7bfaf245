package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/manthysbr/floral/internal/adapters/docker"
	"github.com/manthysbr/floral/internal/adapters/duckdb"
	"github.com/manthysbr/floral/internal/adapters/providers"
	"github.com/manthysbr/floral/internal/config"
	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/ports"
	"github.com/manthysbr/floral/internal/core/services"
	"github.com/manthysbr/floral/internal/logging"
)

// app is the fully wired process shared by serve and run.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	repo        *duckdb.Repository
	settings    *config.SettingsStore
	registry    *providers.Registry
	bus         *services.EventBus
	gate        *services.RunGate
	session     *services.Session
	log         *services.ExecutionLog
	engine      *services.PipelineEngine
	interchange *services.Interchange
	documents   *services.DocumentService
	tools       *services.MagicTools
}

func loadConfig(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, logOut)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	repo, err := duckdb.NewRepository(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}

	vault, err := config.NewVault(cfg.IdentityPath)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to init vault: %w", err)
	}

	settings, err := config.NewSettingsStore(logger, repo, vault, cfg.Seed())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to init settings: %w", err)
	}

	registry := providers.Build(settings.GetConfig(), providers.Options{
		Timeout:   cfg.ProviderTimeout(),
		MockDelay: cfg.MockDelay(),
	})
	settings.OnChange(func(c *domain.AppConfig) {
		registry.Reload(c)
		logger.Info("providers reloaded")
	})
	for _, p := range domain.Providers() {
		if registry.Mocked(p) {
			logger.Warn("no API key configured, using mock responses", "provider", p)
		}
	}

	bus := services.NewEventBus(logger)
	gate := services.NewRunGate()
	session := services.NewSession(gate, bus, services.SessionDefaults{Steps: domain.DefaultAgents()})
	execLog := services.NewExecutionLog(bus)

	// A nil *docker.Rasterizer must not reach the interface.
	var rasterizer ports.Rasterizer
	if cfg.Rasterizer.Enabled {
		r, err := docker.NewRasterizer(docker.Options{
			Image:   cfg.Rasterizer.Image,
			DPI:     cfg.Rasterizer.DPI,
			Timeout: cfg.RasterizerTimeout(),
		})
		if err != nil {
			logger.Warn("pdf rasterizer unavailable, PDF uploads disabled", "error", err)
		} else {
			rasterizer = r
		}
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		repo:        repo,
		settings:    settings,
		registry:    registry,
		bus:         bus,
		gate:        gate,
		session:     session,
		log:         execLog,
		engine:      services.NewPipelineEngine(logger, session, registry, execLog, bus, gate, repo),
		interchange: services.NewInterchange(logger, session, execLog),
		documents:   services.NewDocumentService(logger, session, registry, rasterizer, execLog, bus, gate, repo),
		tools:       services.NewMagicTools(logger, session, registry, execLog, bus, gate, repo),
	}

	if cfg.AgentsFile != "" {
		if err := a.importAgents(cfg.AgentsFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) importAgents(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading agents file: %w", err)
	}
	steps, err := a.interchange.Import(data)
	if err != nil {
		return fmt.Errorf("importing agents file %s: %w", path, err)
	}
	a.logger.Info("agents loaded", "path", path, "count", len(steps))
	return nil
}

func (a *app) Close() error {
	return a.repo.Close()
}
