// Package admin держит локальную копию заказов для консоли администратора
// и проводит смену статуса и удаление через Order Service.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// DefaultListLimit — сколько заказов запрашивается при обновлении.
	DefaultListLimit = 50
	// ConfirmPrompt — вопрос, который показывается перед удалением.
	ConfirmPrompt = "Purge this transaction?"
)

// ErrUpdateInProgress возвращается, пока по заказу не завершился предыдущий запрос.
var ErrUpdateInProgress = errors.New("order update already in progress")

// Confirm спрашивает администратора, удалять ли заказ.
type Confirm func(order domain.Order) bool

// Options задает зависимости Board.
type Options struct {
	Logger    *log.Entry
	Metrics   *metrics.StorefrontMetrics
	Publisher domain.EventPublisher
	Limit     int
}

// Option настраивает Board.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithPublisher включает публикацию order.status_changed и order.deleted.
func WithPublisher(p domain.EventPublisher) Option {
	return func(opts *Options) { opts.Publisher = p }
}

// WithLimit задает limit для GET /orders.
func WithLimit(limit int) Option {
	return func(opts *Options) { opts.Limit = limit }
}

type entry struct {
	order    domain.Order
	editSeq  uint64
	inFlight bool
}

// Board — локальная коллекция заказов.
//
// Каждое локальное изменение и каждый Refresh получают номер из монотонного счётчика seq.
// Refresh не перезаписывает записи, изменённые (или удалённые, или ожидающие ответа)
// после его старта, и отбрасывается целиком, если уже применён более поздний Refresh.
type Board struct {
	admin     domain.OrderAdmin
	notifier  domain.Notifier
	publisher domain.EventPublisher
	logger    *log.Entry
	metrics   *metrics.StorefrontMetrics
	limit     int

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	seq        uint64
	ids        []domain.OrderID
	entries    map[domain.OrderID]*entry
	tombstones map[domain.OrderID]uint64
	appliedSeq uint64
	closed     bool
	loadedAt   time.Time
}

func NewBoard(admin domain.OrderAdmin, notifier domain.Notifier, options ...Option) *Board {
	var opts Options
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "admin-board")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Board{
		admin:      admin,
		notifier:   notifier,
		publisher:  opts.Publisher,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		limit:      opts.Limit,
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[domain.OrderID]*entry),
		tombstones: make(map[domain.OrderID]uint64),
	}
}

// Close отменяет все запросы в полёте; их результаты будут отброшены.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cancel()
}

// Refresh перечитывает список заказов с сервера.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.ErrSessionClosed
	}
	b.seq++
	startSeq := b.seq
	b.mu.Unlock()

	started := time.Now()
	reqCtx, done := b.derive(ctx)
	orders, err := b.admin.ListOrders(reqCtx, b.limit)
	done()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return domain.ErrSessionClosed
	}
	if err != nil {
		b.metrics.RecordRefresh(metrics.ResultFailed, time.Since(started))
		b.logger.WithError(err).Warn("failed to refresh orders")
		return fmt.Errorf("refresh orders: %w", err)
	}
	if startSeq < b.appliedSeq {
		b.logger.WithFields(log.Fields{
			"started_seq": startSeq,
			"applied_seq": b.appliedSeq,
		}).Debug("stale refresh discarded")
		return nil
	}

	entries := make(map[domain.OrderID]*entry, len(orders))
	ids := make([]domain.OrderID, 0, len(orders))
	for _, o := range orders {
		if deletedAt, ok := b.tombstones[o.ID]; ok && deletedAt > startSeq {
			continue
		}
		if _, dup := entries[o.ID]; dup {
			continue
		}
		if local, ok := b.entries[o.ID]; ok && (local.inFlight || local.editSeq > startSeq) {
			entries[o.ID] = local
		} else {
			entries[o.ID] = &entry{order: o}
		}
		ids = append(ids, o.ID)
	}
	// Записи, изменённые локально после старта, сохраняются, даже если их нет в ответе.
	for _, id := range b.ids {
		local := b.entries[id]
		if _, ok := entries[id]; ok || local == nil {
			continue
		}
		if local.inFlight || local.editSeq > startSeq {
			entries[id] = local
			ids = append(ids, id)
		}
	}
	for id, deletedAt := range b.tombstones {
		if deletedAt <= startSeq {
			delete(b.tombstones, id)
		}
	}

	b.entries = entries
	b.ids = ids
	b.appliedSeq = startSeq
	b.loadedAt = time.Now()
	b.metrics.RecordRefresh(metrics.ResultOK, time.Since(started))
	b.logger.WithField("orders", len(ids)).Debug("orders refreshed")
	return nil
}

// SetStatus переводит заказ в новый статус.
// Локальный статус меняется сразу; при отказе сервиса прежнее значение восстанавливается.
func (b *Board) SetStatus(ctx context.Context, id domain.OrderID, to domain.OrderStatus) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, to)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.Order{}, domain.ErrSessionClosed
	}
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id.Reference())
	}
	from := e.order.Status
	if from == to {
		order := e.order
		b.mu.Unlock()
		return order, nil
	}
	if e.inFlight {
		b.mu.Unlock()
		return domain.Order{}, ErrUpdateInProgress
	}
	if err := domain.CheckTransition(from, to); err != nil {
		b.mu.Unlock()
		b.metrics.RecordStatusTransition(string(to), metrics.ResultRejected)
		b.notify(domain.NotificationError, fmt.Sprintf("Cannot change %s from %s to %s", id.Reference(), from, to))
		return domain.Order{}, err
	}

	b.seq++
	mySeq := b.seq
	e.editSeq = mySeq
	e.inFlight = true
	e.order.Status = to
	b.mu.Unlock()

	logger := b.logger.WithFields(log.Fields{
		"order_id": id.Reference(),
		"from":     string(from),
		"to":       string(to),
	})

	reqCtx, done := b.derive(ctx)
	_, err := b.admin.UpdateOrderStatus(reqCtx, id, to)
	done()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.Order{}, domain.ErrSessionClosed
	}
	current, stillHere := b.entries[id]
	if stillHere {
		current.inFlight = false
	}

	if err != nil {
		if stillHere && current.editSeq == mySeq && current.order.Status == to {
			b.seq++
			current.editSeq = b.seq
			current.order.Status = from
		}
		b.mu.Unlock()

		logger.WithError(err).Warn("status update failed, local status restored")
		b.metrics.RecordStatusTransition(string(to), metrics.ResultFailed)
		b.notify(domain.NotificationError, failureText("Failed to update status of "+id.Reference(), err))
		return domain.Order{}, fmt.Errorf("update status of %s: %w", id.Reference(), err)
	}

	var order domain.Order
	if stillHere {
		order = current.order
	}
	b.mu.Unlock()

	logger.Info("order status updated")
	b.metrics.RecordStatusTransition(string(to), metrics.ResultOK)
	b.publish(kafka.EventTypeOrderStatusChanged, id, to, map[string]interface{}{"previous": string(from)})
	return order, nil
}

// Delete удаляет заказ после подтверждения. Отказ сервиса оставляет коллекцию без изменений.
func (b *Board) Delete(ctx context.Context, id domain.OrderID, confirm Confirm) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.ErrSessionClosed
	}
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id.Reference())
	}
	if e.inFlight {
		b.mu.Unlock()
		return ErrUpdateInProgress
	}
	order := e.order
	b.mu.Unlock()

	if confirm == nil || !confirm(order) {
		b.metrics.RecordOrderDeletion(metrics.ResultDeclined)
		return domain.ErrDeletionDeclined
	}

	b.mu.Lock()
	if e, ok = b.entries[id]; ok {
		e.inFlight = true
	}
	b.mu.Unlock()

	reqCtx, done := b.derive(ctx)
	err := b.admin.DeleteOrder(reqCtx, id)
	done()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if current, ok := b.entries[id]; ok {
		current.inFlight = false
	}
	if err != nil {
		b.mu.Unlock()
		b.logger.WithError(err).WithField("order_id", id.Reference()).Warn("failed to delete order")
		b.metrics.RecordOrderDeletion(metrics.ResultFailed)
		b.notify(domain.NotificationError, failureText("Failed to delete "+id.Reference(), err))
		return fmt.Errorf("delete %s: %w", id.Reference(), err)
	}

	b.seq++
	b.tombstones[id] = b.seq
	delete(b.entries, id)
	for i, existing := range b.ids {
		if existing == id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	b.logger.WithField("order_id", id.Reference()).Info("order deleted")
	b.metrics.RecordOrderDeletion(metrics.ResultOK)
	b.publish(kafka.EventTypeOrderDeleted, id, order.Status, nil)
	return nil
}

// Orders возвращает заказы в порядке, полученном от сервера.
func (b *Board) Orders() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]domain.Order, 0, len(b.ids))
	for _, id := range b.ids {
		result = append(result, b.entries[id].order)
	}
	return result
}

// Get возвращает заказ из локальной коллекции.
func (b *Board) Get(id domain.OrderID) (domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return domain.Order{}, false
	}
	return e.order, true
}

// Filter ищет подстроку (без учёта регистра) в ORD-номере, имени, email и статусе.
func (b *Board) Filter(query string) []domain.Order {
	query = strings.ToLower(strings.TrimSpace(query))
	orders := b.Orders()
	if query == "" {
		return orders
	}

	result := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if strings.Contains(strings.ToLower(o.ID.Reference()), query) ||
			strings.Contains(strings.ToLower(o.CustomerName), query) ||
			strings.Contains(strings.ToLower(o.CustomerEmail), query) ||
			strings.Contains(string(o.Status), query) {
			result = append(result, o)
		}
	}
	return result
}

// ActiveCount — число заказов в статусе pending.
func (b *Board) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, e := range b.entries {
		if e.order.Status == domain.OrderStatusPending {
			count++
		}
	}
	return count
}

// LoadedAt — время последнего успешного обновления.
func (b *Board) LoadedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadedAt
}

// derive связывает контекст вызова с временем жизни Board.
func (b *Board) derive(ctx context.Context) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

func (b *Board) notify(level domain.NotificationLevel, message string) {
	if b.notifier == nil {
		return
	}
	b.notifier.Notify(domain.Notification{Level: level, Message: message})
}

func (b *Board) publish(eventType kafka.EventType, id domain.OrderID, status domain.OrderStatus, metadata map[string]interface{}) {
	if b.publisher == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, id, status, metadata)
	if err := b.publisher.PublishEvent(kafka.TopicOrderEvents, id.Reference(), event); err != nil {
		b.logger.WithError(err).WithField("order_id", id.Reference()).Warn("failed to publish order event")
	}
}

func failureText(prefix string, err error) string {
	if detail, ok := domain.RemoteDetail(err); ok {
		return prefix + ": " + detail
	}
	return prefix
}
