// Package cart владеет корзиной текущей сессии: все изменения идут через Service
// и сохраняются в domain.CartStore до возврата управления.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	opAdd         = "add"
	opIncrement   = "increment"
	opRemove      = "remove"
	opSetQuantity = "set_quantity"
	opClear       = "clear"
	opSubmitted   = "submitted"
)

// MessageSaveFailed показывается, если изменение не удалось сохранить.
const MessageSaveFailed = "Could not save your cart"

// Options задает зависимости сервиса корзины.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.StorefrontMetrics
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задает logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics включает метрики корзины.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Service — API операций над корзиной.
type Service struct {
	mu       sync.Mutex
	cart     domain.Cart
	store    domain.CartStore
	notifier domain.Notifier
	logger   *log.Entry
	metrics  *metrics.StorefrontMetrics
}

// NewService создаёт сервис и гидрирует корзину из store.
// Недоступное хранилище не фатально: сессия стартует с пустой корзиной.
func NewService(ctx context.Context, store domain.CartStore, notifier domain.Notifier, options ...Option) *Service {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart")
	}

	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  opts.Metrics,
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("cart store unavailable, starting with empty cart")
		s.metrics.RecordCartLoad(metrics.ResultFailed, 0)
		return s
	}
	s.cart = loaded
	s.metrics.RecordCartLoad(metrics.ResultOK, loaded.Count())
	s.logger.WithFields(log.Fields{
		"items": len(loaded.Items),
		"units": loaded.Count(),
	}).Debug("cart hydrated")

	return s
}

// AddItem добавляет товар или увеличивает количество уже лежащей позиции на 1.
func (s *Service) AddItem(ctx context.Context, product domain.Product) error {
	item, err := domain.NewCartItem(product)
	if err != nil {
		return fmt.Errorf("add product %d: %w", product.ID, err)
	}

	s.mu.Lock()
	var (
		op   string
		note domain.Notification
	)
	if idx, ok := s.cart.Find(item.ID); ok {
		s.cart.Items[idx].Quantity++
		op = opIncrement
		note = domain.Notification{Level: domain.NotificationInfo, Message: "Increased quantity of " + product.Name}
	} else {
		s.cart.Items = append(s.cart.Items, item)
		op = opAdd
		note = domain.Notification{Level: domain.NotificationSuccess, Message: item.Name + " added to cart"}
	}
	err = s.persistLocked(ctx, op)
	s.mu.Unlock()

	s.notify(note)
	return s.afterPersist(err)
}

// RemoveItem удаляет позицию. Отсутствующий id не считается ошибкой.
func (s *Service) RemoveItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.removeLocked(id)
	err := s.persistLocked(ctx, opRemove)
	s.mu.Unlock()

	s.notify(domain.Notification{Level: domain.NotificationInfo, Message: "Item removed from cart"})
	return s.afterPersist(err)
}

// SetQuantity перезаписывает количество; n < 1 эквивалентно RemoveItem.
func (s *Service) SetQuantity(ctx context.Context, id int64, n int) error {
	if n < 1 {
		return s.RemoveItem(ctx, id)
	}

	s.mu.Lock()
	if idx, ok := s.cart.Find(id); ok {
		s.cart.Items[idx].Quantity = n
	}
	err := s.persistLocked(ctx, opSetQuantity)
	s.mu.Unlock()

	return s.afterPersist(err)
}

// Clear очищает корзину без уведомления.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cart = domain.Cart{}
	err := s.persistLocked(ctx, opClear)
	s.mu.Unlock()

	return s.afterPersist(err)
}

// RemoveSubmitted вычитает из корзины количества, ушедшие в принятый заказ.
// Позиции, добавленные во время отправки, остаются. Уведомления нет.
func (s *Service) RemoveSubmitted(ctx context.Context, lines []domain.LineItem) error {
	s.mu.Lock()
	for _, line := range lines {
		idx, ok := s.cart.Find(line.ProductID)
		if !ok {
			continue
		}
		if s.cart.Items[idx].Quantity > line.Quantity {
			s.cart.Items[idx].Quantity -= line.Quantity
			continue
		}
		s.removeLocked(line.ProductID)
	}
	err := s.persistLocked(ctx, opSubmitted)
	s.mu.Unlock()

	return s.afterPersist(err)
}

// Snapshot возвращает независимую копию корзины.
func (s *Service) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Service) Items() []domain.CartItem {
	return s.Snapshot().Items
}

func (s *Service) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

func (s *Service) removeLocked(id int64) {
	idx, ok := s.cart.Find(id)
	if !ok {
		return
	}
	s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)
	if len(s.cart.Items) == 0 {
		s.cart.Items = nil
	}
}

// persistLocked сохраняет текущее состояние; вызывается под s.mu, поэтому
// записи в store упорядочены так же, как изменения.
func (s *Service) persistLocked(ctx context.Context, op string) error {
	s.metrics.RecordCartMutation(op, s.cart.Count())

	if err := s.store.Save(ctx, s.cart.Clone()); err != nil {
		s.logger.WithError(err).WithField("op", op).Warn("failed to persist cart")
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Service) afterPersist(err error) error {
	if err != nil {
		s.notify(domain.Notification{Level: domain.NotificationError, Message: MessageSaveFailed})
	}
	return err
}

func (s *Service) notify(n domain.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(n)
}
