package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bazaar.com/internal/application/usecase"
	"bazaar.com/internal/infrastructure/config"
	httphandler "bazaar.com/internal/infrastructure/http"
	"bazaar.com/internal/infrastructure/logger"
	"bazaar.com/internal/infrastructure/messaging"
	"bazaar.com/internal/infrastructure/validator"
)

var autoMigrate bool //nolint:gochecknoglobals

var apiServerCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "server",
	Short: "Run API Server.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			logger.NewLogger().LogError(context.TODO(), "Failed to load config", err)
			return err
		}
		appLogger := logger.New(os.Stdout, cfg.Log.Level)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg, appLogger)
	},
}

func runServer(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	appLogger.LogInfo(ctx, "Configuration loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"registry", cfg.Registry.Mode,
		"payment", cfg.Payment.Mode,
		"timestamp_tolerance", cfg.Auth.TimestampTolerance.String())

	// Initialize infrastructure adapters
	store, err := openStore(ctx, cfg.Storage, autoMigrate, appLogger)
	if err != nil {
		appLogger.LogError(ctx, "Failed to open ledger store", err, "driver", cfg.Storage.Driver)
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	if cfg.Registry.Mode == config.ModeMemory || cfg.Payment.Mode == config.ModeMemory {
		appLogger.LogWarning(ctx, "Using in-memory collaborators, state is lost on restart",
			"registry", cfg.Registry.Mode,
			"payment", cfg.Payment.Mode)
	}

	authenticator := validator.NewHMACAuthenticator(
		cfg.Auth.Secret,
		cfg.Auth.CallerSecrets,
		cfg.Auth.TimestampTolerance,
		appLogger,
	)
	bus := messaging.NewBus(appLogger)

	// Initialize use cases
	market := usecase.NewMarketplace(
		store,
		newRegistry(cfg.Registry, appLogger),
		newPayments(cfg.Payment, appLogger),
		usecase.MarketplaceConfig{
			Operator: cfg.Marketplace.Operator,
			LockWait: cfg.Marketplace.LockWait,
			FailFast: cfg.Marketplace.FailFast,
		},
		appLogger,
	)
	listEvents := usecase.NewListEventsUseCase(store)

	g, gctx := errgroup.WithContext(ctx)

	// Initialize HTTP handler. Event streams end with the server.
	handler := httphandler.NewHandler(
		market,
		listEvents,
		authenticator,
		httphandler.NewEventStream(gctx, bus, messaging.AllTopics(), appLogger),
		appLogger,
	)

	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	relay := messaging.OutboxRelay{
		Outbox:    store,
		Publisher: bus,
		BatchSize: cfg.Events.BatchSize,
		Interval:  cfg.Events.RelayInterval,
		Logger:    appLogger,
	}

	g.Go(func() error {
		appLogger.LogInfo(gctx, "Starting server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return relay.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.LogInfo(context.Background(), "Initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.LogError(shutdownCtx, "Server forced to shutdown", err)
			return err
		}
		appLogger.LogInfo(shutdownCtx, "Server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.LogError(context.Background(), "Server error", err)
		return err
	}
	return nil
}

func init() { //nolint:gochecknoinits
	apiServerCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "create or update SQL ledger tables on startup")
	rootCmd.AddCommand(apiServerCmd)
}
