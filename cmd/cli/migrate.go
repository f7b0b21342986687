package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bazaar.com/internal/infrastructure/config"
	"bazaar.com/internal/infrastructure/logger"
)

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "migrate",
	Short: "Create or update the SQL ledger tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appLogger := logger.New(os.Stderr, cfg.Log.Level)
		return runMigrate(cmd.Context(), cfg.Storage, appLogger)
	},
}

func runMigrate(ctx context.Context, cfg config.Storage, appLogger logger.Logger) error {
	if cfg.Driver == config.StorageMemory {
		return errors.New("storage driver memory has no schema to migrate")
	}

	store, err := openStore(ctx, cfg, true, appLogger)
	if err != nil {
		appLogger.LogError(ctx, "Migration failed", err, "driver", cfg.Driver)
		return fmt.Errorf("migrate %s: %w", cfg.Driver, err)
	}
	defer store.Close()

	appLogger.LogInfo(ctx, "Ledger schema is up to date", "driver", cfg.Driver)
	return nil
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(migrateCmd)
}
