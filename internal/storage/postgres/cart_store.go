package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStore хранит корзину одной строкой таблицы cart_snapshots.
type CartStore struct {
	db     *sql.DB
	key    string
	logger *log.Entry
}

// NewCartStore создаёт хранилище корзины под ключом key.
func NewCartStore(store *Store, key string, logger *log.Entry) *CartStore {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CartStore{
		db:     store.DB(),
		key:    key,
		logger: logger.WithFields(log.Fields{"component": "cart-store", "driver": "postgres"}),
	}
}

// Load читает снимок; отсутствие строки или повреждённый payload дают пустую корзину.
func (s *CartStore) Load(ctx context.Context) (domain.Cart, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM cart_snapshots WHERE cart_key = $1`, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("select cart snapshot: %w", err)
	}

	cart, err := domain.DecodeCart(payload)
	if err != nil {
		s.logger.WithError(err).WithField("key", s.key).Warn("discarding corrupt cart snapshot")
		return domain.Cart{}, nil
	}
	return cart, nil
}

// Save перезаписывает снимок целиком через upsert.
func (s *CartStore) Save(ctx context.Context, cart domain.Cart) error {
	payload, err := domain.EncodeCart(cart)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (cart_key, payload, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (cart_key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, s.key, string(payload))
	if err != nil {
		return fmt.Errorf("upsert cart snapshot: %w", err)
	}
	return nil
}

var _ domain.CartStore = (*CartStore)(nil)
