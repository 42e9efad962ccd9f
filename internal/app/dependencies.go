package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/file"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// runtimeDependencies — выбранное хранилище корзины и то, что нужно закрыть вместе с сессией.
type runtimeDependencies struct {
	cartStore domain.CartStore
	driver    string
	ping      func(ctx context.Context) error
	closers   []func() error
}

// initRuntimeDependencies открывает хранилище корзины по cfg.CartStore.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.CartStore))
	if driver == "" {
		driver = StoreDriverMemory
	}

	deps := &runtimeDependencies{driver: driver}
	storeLogger := logger.WithField("layer", "storage")

	switch driver {
	case StoreDriverMemory:
		deps.cartStore = memory.NewCartStore()

	case StoreDriverFile:
		if strings.TrimSpace(cfg.CartFile) == "" {
			return nil, errors.New("cart file path is required for file store")
		}
		deps.cartStore = file.NewCartStore(cfg.CartFile, storeLogger)

	case StoreDriverRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("redis addr is required for redis store")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisstore.NewCartStore(client, cfg.CartKey, storeLogger)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis cart store: %w", err)
		}
		deps.cartStore = store
		deps.ping = store.Ping
		deps.closers = append(deps.closers, client.Close)

	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required for postgres store")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate cart schema: %w", err)
			}
		}
		deps.cartStore = postgres.NewCartStore(store, cfg.CartKey, storeLogger)
		deps.ping = store.Ping
		deps.closers = append(deps.closers, store.Close)

	default:
		return nil, fmt.Errorf("unsupported cart store driver %q", cfg.CartStore)
	}

	logger.WithField("driver", driver).Info("cart store initialized")
	return deps, nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
