package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStore хранит сериализованную корзину в одном ключе Redis без TTL.
type CartStore struct {
	client goredis.UniversalClient
	key    string
	logger *log.Entry
}

// NewCartStore создаёт хранилище поверх готового клиента.
func NewCartStore(client goredis.UniversalClient, key string, logger *log.Entry) *CartStore {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CartStore{
		client: client,
		key:    key,
		logger: logger.WithFields(log.Fields{"component": "cart-store", "driver": "redis"}),
	}
}

// Load читает корзину; отсутствие ключа или порча значения дают пустую корзину.
func (s *CartStore) Load(ctx context.Context) (domain.Cart, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("redis get cart: %w", err)
	}

	cart, err := domain.DecodeCart(data)
	if err != nil {
		s.logger.WithError(err).WithField("key", s.key).Warn("discarding corrupt cart payload")
		return domain.Cart{}, nil
	}
	return cart, nil
}

// Save перезаписывает значение целиком.
func (s *CartStore) Save(ctx context.Context, cart domain.Cart) error {
	payload, err := domain.EncodeCart(cart)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ domain.CartStore = (*CartStore)(nil)
