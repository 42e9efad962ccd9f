package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix — префикс переменных окружения (STOREFRONT_API_URL и т.д.).
const EnvPrefix = "STOREFRONT"

// Драйверы долговременного хранилища корзины.
const (
	StoreDriverMemory   = "memory"
	StoreDriverFile     = "file"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

// Config описывает настройки сессии витрины и сервиса-заглушки.
type Config struct {
	APIURL     string        `envconfig:"API_URL"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT"`

	CartStore string `envconfig:"CART_STORE"`
	CartKey   string `envconfig:"CART_KEY"`
	CartFile  string `envconfig:"CART_FILE"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	SessionID    string   `envconfig:"SESSION_ID"`

	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL"`
	OrderListLimit  int           `envconfig:"ORDER_LIST_LIMIT"`

	LogLevel string `envconfig:"LOG_LEVEL"`

	MockHTTPAddr string `envconfig:"MOCK_HTTP_ADDR"`
	MockGRPCAddr string `envconfig:"MOCK_GRPC_ADDR"`
	MetricsAddr  string `envconfig:"METRICS_ADDR"`
}

// DefaultConfig возвращает настройки для локальной разработки.
func DefaultConfig() Config {
	return Config{
		APIURL:              "http://localhost:8000",
		APITimeout:          10 * time.Second,
		CartStore:           StoreDriverFile,
		CartKey:             "cartItems",
		CartFile:            "cartItems.json",
		RedisAddr:           "localhost:6379",
		PostgresAutoMigrate: true,
		RefreshInterval:     30 * time.Second,
		OrderListLimit:      50,
		LogLevel:            "info",
		MockHTTPAddr:        ":8000",
		MockGRPCAddr:        ":50051",
		MetricsAddr:         ":9090",
	}
}

// LoadConfig накладывает переменные окружения STOREFRONT_* на DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.CartStore = strings.ToLower(strings.TrimSpace(cfg.CartStore))
	return cfg, nil
}

// Validate проверяет согласованность настроек сессии.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.APIURL) == "" {
		errs = append(errs, errors.New("api url is required"))
	}
	if strings.TrimSpace(c.CartKey) == "" {
		errs = append(errs, errors.New("cart key is required"))
	}

	switch c.CartStore {
	case StoreDriverMemory:
	case StoreDriverFile:
		if strings.TrimSpace(c.CartFile) == "" {
			errs = append(errs, errors.New("cart file is required for file store"))
		}
	case StoreDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis addr is required for redis store"))
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cart store %q (use memory|file|redis|postgres)", c.CartStore))
	}

	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refresh interval must be positive"))
	}
	if c.OrderListLimit <= 0 {
		errs = append(errs, errors.New("order list limit must be positive"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	return errors.Join(errs...)
}

// ConfigureLogger применяет формат и уровень логирования бинарников.
func ConfigureLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return err
	}
	log.SetLevel(parsed)
	return nil
}
