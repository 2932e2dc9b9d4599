package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `yaml:"service_name" env:"SERVICE_NAME" env-default:"stakepoll"`
	HTTPPort     string   `yaml:"http_port" env:"HTTP_PORT" env-default:"8080"`
	StoreBackend string   `yaml:"store_backend" env:"STORE_BACKEND" env-default:"memory"`
	PostgresDSN  string   `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`

	ProtocolOwner  string `yaml:"protocol_owner" env:"PROTOCOL_OWNER"`
	AmountDecimals int32  `yaml:"amount_decimals" env:"AMOUNT_DECIMALS" env-default:"18"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"2s"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"100"`
	IdempotencyTTL     time.Duration `yaml:"idempotency_ttl" env:"IDEMPOTENCY_TTL" env-default:"24h"`
	MigrationsPath     string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// Load reads CONFIG_PATH (yaml) when set, then overlays environment
// variables. Without CONFIG_PATH only the environment is read.
func Load() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadForMigrations only requires what the migrator touches: the DSN and the
// migrations directory.
func LoadForMigrations() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return Config{}, errors.New("POSTGRES_DSN is required")
	}
	return cfg, nil
}

func read() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config from env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.ProtocolOwner = strings.TrimSpace(c.ProtocolOwner)
	brokers := make([]string, 0, len(c.KafkaBrokers))
	for _, value := range c.KafkaBrokers {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	c.KafkaBrokers = brokers
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.ProtocolOwner == "" {
		return errors.New("PROTOCOL_OWNER is required")
	}
	if c.AmountDecimals < 0 || c.AmountDecimals > 36 {
		return fmt.Errorf("AMOUNT_DECIMALS must be between 0 and 36, got %d", c.AmountDecimals)
	}
	if c.OutboxPollInterval <= 0 {
		return errors.New("OUTBOX_POLL_INTERVAL must be positive")
	}
	return nil
}
