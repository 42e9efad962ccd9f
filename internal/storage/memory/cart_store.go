package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStore хранит сериализованную корзину, как это делает любое долговременное хранилище.
type CartStore struct {
	mu      sync.RWMutex
	payload []byte
}

// NewCartStore возвращает пустое in-memory хранилище корзины для тестов и эфемерных сессий.
func NewCartStore() *CartStore {
	return &CartStore{}
}

// NewCartStoreWithPayload создаёт хранилище с заранее записанными байтами (в том числе повреждёнными).
func NewCartStoreWithPayload(payload []byte) *CartStore {
	return &CartStore{payload: append([]byte(nil), payload...)}
}

// Load возвращает сохранённую корзину; отсутствие или порча данных дают пустую корзину.
func (s *CartStore) Load(_ context.Context) (domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.payload == nil {
		return domain.Cart{}, nil
	}
	cart, err := domain.DecodeCart(s.payload)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptCart) {
			return domain.Cart{}, nil
		}
		return domain.Cart{}, err
	}
	return cart, nil
}

// Save перезаписывает состояние целиком.
func (s *CartStore) Save(_ context.Context, cart domain.Cart) error {
	payload, err := domain.EncodeCart(cart)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.payload = payload
	s.mu.Unlock()
	return nil
}

// Payload возвращает копию сохранённых байтов.
func (s *CartStore) Payload() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.payload...)
}

var _ domain.CartStore = (*CartStore)(nil)
