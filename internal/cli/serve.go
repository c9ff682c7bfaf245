package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manthysbr/floral/pkg/kernel"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP, SSE and WebSocket",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
	logger.Info("starting floral kernel", "version", Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("kernel startup failed", "error", err)
		return err
	}
	defer a.Close()

	apiServer := kernel.NewServer(logger, kernel.Services{
		Session:     a.session,
		Engine:      a.engine,
		Interchange: a.interchange,
		Documents:   a.documents,
		Tools:       a.tools,
		Log:         a.log,
		EventBus:    a.bus,
		Settings:    a.settings,
		Runs:        a.repo,
		Providers:   a.registry,
	})
	apiHandler, err := apiServer.Handler()
	if err != nil {
		return fmt.Errorf("failed to build api handler: %w", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           c.Handler(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. API server
	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	// 2. Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
