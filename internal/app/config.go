package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Префиксы переменных окружения сервисов.
const (
	OrderServicePrefix   = "FOODORDER"
	CatalogServicePrefix = "CATALOG"
)

// StorageConfig: общие настройки хранилища.
type StorageConfig struct {
	Driver      StorageDriver `envconfig:"STORAGE_DRIVER" default:"memory"`
	PostgresDSN string        `envconfig:"POSTGRES_DSN"`
	AutoMigrate bool          `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`
}

// Validate проверяет драйвер и DSN.
func (c StorageConfig) Validate() error {
	switch c.Driver {
	case StorageDriverMemory:
		return nil
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required for postgres storage")
		}
		if c.MaxOpenConns < 0 || c.ConnMaxLifetime < 0 {
			return errors.New("POSTGRES_MAX_OPEN_CONNS and POSTGRES_CONN_MAX_LIFETIME must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Driver)
	}
}

// Config: настройки order-service.
type Config struct {
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":50051"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	StorageConfig

	// FoodServiceAddr задаёт адрес каталога напрямую, в обход discovery.
	FoodServiceAddr string        `envconfig:"FOOD_SERVICE_ADDR"`
	CatalogTimeout  time.Duration `envconfig:"CATALOG_TIMEOUT" default:"2s"`

	// CatalogRetries: число попыток запроса к каталогу при временных сбоях.
	CatalogRetries    int           `envconfig:"CATALOG_RETRIES" default:"2"`
	CatalogRetryDelay time.Duration `envconfig:"CATALOG_RETRY_DELAY" default:"100ms"`

	RedisAddr       string `envconfig:"REDIS_ADDR"`
	DiscoveryPrefix string `envconfig:"DISCOVERY_PREFIX" default:"discovery"`

	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaClientID string   `envconfig:"KAFKA_CLIENT_ID" default:"order-service"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"50ms"`

	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL" default:"10m"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" default:"500"`
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if err := c.StorageConfig.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.GRPCAddr == "" || c.HTTPAddr == "" {
		errs = append(errs, errors.New("GRPC_ADDR and HTTP_ADDR are required"))
	}
	if c.CatalogTimeout <= 0 {
		errs = append(errs, errors.New("CATALOG_TIMEOUT must be positive"))
	}
	if c.CatalogRetries <= 0 || c.CatalogRetryDelay < 0 {
		errs = append(errs, errors.New("CATALOG_RETRIES must be positive and CATALOG_RETRY_DELAY not negative"))
	}
	if c.OutboxPollInterval <= 0 || c.IdempotencyCleanupInterval <= 0 {
		errs = append(errs, errors.New("worker intervals must be positive"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("worker batch sizes and attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("OUTBOX_RETRY_DELAY must not be negative"))
	}
	return errors.Join(errs...)
}

// CatalogConfig: настройки catalog-service.
type CatalogConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8081"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR" default:":9091"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	StorageConfig

	// MenuFile: YAML с меню, загружается в каталог при старте.
	MenuFile string `envconfig:"MENU_FILE"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	DiscoveryPrefix string        `envconfig:"DISCOVERY_PREFIX" default:"discovery"`
	AdvertiseAddr   string        `envconfig:"ADVERTISE_ADDR"`
	RegistrationTTL time.Duration `envconfig:"REGISTRATION_TTL" default:"15s"`
}

// Validate проверяет согласованность настроек каталога.
func (c CatalogConfig) Validate() error {
	var errs []error
	if err := c.StorageConfig.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.RedisAddr != "" && c.AdvertiseAddr == "" {
		errs = append(errs, errors.New("ADVERTISE_ADDR is required when REDIS_ADDR is set"))
	}
	if c.RegistrationTTL <= 0 {
		errs = append(errs, errors.New("REGISTRATION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv подгружает .env, если он есть. Уже выставленные переменные не перезаписываются.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadConfig читает настройки order-service из окружения.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(OrderServicePrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadCatalogConfig читает настройки catalog-service из окружения.
func LoadCatalogConfig() (CatalogConfig, error) {
	var cfg CatalogConfig
	if err := envconfig.Process(CatalogServicePrefix, &cfg); err != nil {
		return CatalogConfig{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return CatalogConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewLogger настраивает logrus: текстовый формат с полными метками времени.
func NewLogger(level string) (*log.Logger, error) {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(parsed)
	return logger, nil
}
