package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/config"
	"bazaar.com/internal/infrastructure/logger"
	"bazaar.com/internal/infrastructure/payment"
	"bazaar.com/internal/infrastructure/registry"
	"bazaar.com/internal/infrastructure/repository"
)

const serverDir = "server"

// loadConfig resolves the config directory relative to where the binary is run from
func loadConfig() (*config.Config, error) {
	configDir := filepath.Join("cmd", "config", serverDir)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		configDir = filepath.Join(".", "config", serverDir)
	}

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// openStore opens the ledger store selected by storage.driver. SQL stores are
// migrated when migrate is set.
func openStore(ctx context.Context, cfg config.Storage, migrate bool, log logger.Logger) (port.LedgerStore, error) {
	var (
		store port.LedgerStore
		err   error
	)
	switch cfg.Driver {
	case config.StorageMemory:
		return repository.NewInMemoryLedger(log), nil
	case config.StorageSQLite:
		store, err = repository.NewSQLiteLedger(ctx, cfg.SQLitePath, log)
	case config.StoragePostgres:
		store, err = repository.NewPostgresLedger(ctx, cfg.PostgresDSN, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if m, ok := store.(migrator); ok && migrate {
		if err := m.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

func newRegistry(cfg config.Remote, log logger.Logger) port.AssetRegistry {
	if cfg.Mode == config.ModeHTTP {
		return registry.NewHTTPRegistry(cfg.URL, cfg.Timeout)
	}
	return registry.NewInMemoryRegistry(log)
}

func newPayments(cfg config.Remote, log logger.Logger) port.PaymentGateway {
	if cfg.Mode == config.ModeHTTP {
		return payment.NewHTTPGateway(cfg.URL, cfg.Timeout)
	}
	return payment.NewInMemoryGateway(log)
}
