package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	ModeMemory = "memory"
	ModeHTTP   = "http"
)

// Config holds the application configuration
type Config struct {
	Server      Server      `mapstructure:"server"`
	Log         Log         `mapstructure:"log"`
	Auth        Auth        `mapstructure:"auth"`
	Storage     Storage     `mapstructure:"storage"`
	Registry    Remote      `mapstructure:"registry"`
	Payment     Remote      `mapstructure:"payment"`
	Events      Events      `mapstructure:"events"`
	Marketplace Marketplace `mapstructure:"marketplace"`
}

// Server configuration
type Server struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// Log configuration
type Log struct {
	Level string `mapstructure:"level"`
}

// Auth configuration. CallerSecrets override Secret for the named callers.
type Auth struct {
	Secret             string            `mapstructure:"hmacSecret"`
	CallerSecrets      map[string]string `mapstructure:"callerSecrets"`
	TimestampTolerance time.Duration     `mapstructure:"timestampTolerance"`
}

// Storage configuration
type Storage struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlitePath"`
	PostgresDSN string `mapstructure:"postgresDsn"`
}

// Remote configures a collaborator that is either simulated in memory or
// reached over HTTP.
type Remote struct {
	Mode    string        `mapstructure:"mode"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Events configures the outbox relay
type Events struct {
	RelayInterval time.Duration `mapstructure:"relayInterval"`
	BatchSize     int           `mapstructure:"batchSize"`
}

// Marketplace configuration. FailFast turns busy callers away without waiting
// for LockWait, which also covers callbacks that re-enter over HTTP.
type Marketplace struct {
	Operator string        `mapstructure:"operator"`
	LockWait time.Duration `mapstructure:"lockWait"`
	FailFast bool          `mapstructure:"failFast"`
}

// LoadConfig loads configuration from YAML files in configDir.
// Uses CONFIG_ENV environment variable to determine which config file to load
func LoadConfig(configDir string) (*Config, error) {
	configEnv := os.Getenv("CONFIG_ENV")
	if configEnv == "" {
		configEnv = "local"
	}

	v := viper.New()
	setDefaults(v)

	// Load base app-config.yaml as template/defaults (if it exists)
	baseConfigPath := fmt.Sprintf("%s/app-config.yaml", configDir)
	baseConfigExists := false
	if _, err := os.Stat(baseConfigPath); err == nil {
		v.SetConfigFile(baseConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read base config file: %w", err)
		}
		baseConfigExists = true
	}

	// Merge environment-specific config (e.g., local.yaml when CONFIG_ENV=local)
	envConfigPath := fmt.Sprintf("%s/%s.yaml", configDir, configEnv)
	if _, err := os.Stat(envConfigPath); err == nil {
		v.SetConfigFile(envConfigPath)
		if baseConfigExists {
			err = v.MergeInConfig()
		} else {
			err = v.ReadInConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read env config file: %w", err)
		}
	}

	// BAZAAR_STORAGE_DRIVER overrides storage.driver, and so on
	v.SetEnvPrefix("BAZAAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("server.port", "BAZAAR_SERVER_PORT", "PORT")
	v.BindEnv("auth.hmacSecret", "BAZAAR_AUTH_HMACSECRET", "HMAC_SECRET")
	v.BindEnv("storage.postgresDsn", "BAZAAR_STORAGE_POSTGRESDSN", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.hmacSecret", "default-secret-key-change-in-production")
	v.SetDefault("auth.timestampTolerance", 5*time.Minute)
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.sqlitePath", "bazaar.db")
	v.SetDefault("registry.mode", ModeMemory)
	v.SetDefault("registry.timeout", 5*time.Second)
	v.SetDefault("payment.mode", ModeMemory)
	v.SetDefault("payment.timeout", 5*time.Second)
	v.SetDefault("events.relayInterval", time.Second)
	v.SetDefault("events.batchSize", 100)
	v.SetDefault("marketplace.operator", "bazaar-marketplace")
	v.SetDefault("marketplace.lockWait", 5*time.Second)
	v.SetDefault("marketplace.failFast", false)
}

// Validate checks the settings that have no usable default
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlitePath is required for the sqlite driver"))
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgresDsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	for name, remote := range map[string]Remote{"registry": c.Registry, "payment": c.Payment} {
		switch remote.Mode {
		case ModeMemory:
		case ModeHTTP:
			if remote.URL == "" {
				errs = append(errs, fmt.Errorf("%s.url is required in http mode", name))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown %s.mode %q", name, remote.Mode))
		}
	}

	if c.Marketplace.Operator == "" {
		errs = append(errs, errors.New("marketplace.operator must not be empty"))
	}
	if c.Events.BatchSize <= 0 {
		errs = append(errs, errors.New("events.batchSize must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
