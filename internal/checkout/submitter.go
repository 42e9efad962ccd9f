package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Тексты уведомлений о результате оформления.
const (
	MessageOrderPlaced   = "Order placed successfully!"
	MessageGenericFailed = "Failed to place order. Please try again."
)

// State — состояние процесса отправки заказа.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
)

// Cart — часть API корзины, нужная для оформления.
type Cart interface {
	Snapshot() domain.Cart
	RemoveSubmitted(ctx context.Context, lines []domain.LineItem) error
}

// Options задает опциональные зависимости Submitter.
type Options struct {
	Logger    *log.Entry
	Metrics   *metrics.StorefrontMetrics
	Publisher domain.EventPublisher
	NewKey    func() string
}

// Option настраивает Submitter.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithPublisher включает публикацию order.submitted после успешной отправки.
func WithPublisher(p domain.EventPublisher) Option {
	return func(opts *Options) { opts.Publisher = p }
}

// WithKeyGenerator подменяет генератор Idempotency-Key.
func WithKeyGenerator(fn func() string) Option {
	return func(opts *Options) { opts.NewKey = fn }
}

// Submitter отправляет корзину в Order Service.
// Отправленные позиции убираются из корзины только после того, как сервис подтвердил приём заказа.
type Submitter struct {
	cart      Cart
	placer    domain.OrderPlacer
	notifier  domain.Notifier
	publisher domain.EventPublisher
	logger    *log.Entry
	metrics   *metrics.StorefrontMetrics
	newKey    func() string

	mu      sync.Mutex
	state   State
	lastErr error
	lastID  domain.OrderID
}

func NewSubmitter(cart Cart, placer domain.OrderPlacer, notifier domain.Notifier, options ...Option) *Submitter {
	var opts Options
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "checkout")
	}
	if opts.NewKey == nil {
		opts.NewKey = uuid.NewString
	}

	return &Submitter{
		cart:      cart,
		placer:    placer,
		notifier:  notifier,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		newKey:    opts.NewKey,
		state:     StateIdle,
	}
}

// State возвращает текущее состояние; после неудачи это снова idle.
func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError возвращает ошибку последней неудачной попытки.
func (s *Submitter) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastOrderID возвращает ID последнего принятого заказа.
func (s *Submitter) LastOrderID() (domain.OrderID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID, s.lastID != 0
}

// CanSubmit сообщает, можно ли показывать действие отправки.
func (s *Submitter) CanSubmit(form domain.ShippingForm) bool {
	if s.State() == StateSubmitting {
		return false
	}
	return !s.cart.Snapshot().IsEmpty() && len(form.Validate()) == 0
}

// Submit выполняет одну попытку оформления. Автоматических повторов нет.
func (s *Submitter) Submit(ctx context.Context, form domain.ShippingForm) (domain.OrderID, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return 0, domain.ErrSubmissionInProgress
	}
	s.state = StateSubmitting
	s.mu.Unlock()
	defer s.releaseGuard()

	started := time.Now()
	s.metrics.RecordSubmissionStarted()

	draft := BuildDraft(s.cart.Snapshot(), form)
	key := s.newKey()
	logger := s.logger.WithFields(log.Fields{
		"idempotency_key": key,
		"lines":           len(draft.LineItems),
		"total":           draft.TotalAmount.String(),
	})

	id, err := s.placer.PlaceOrder(ctx, draft, key)
	if err != nil {
		s.fail(logger, err)
		s.metrics.RecordSubmissionFinished(metrics.ResultFailed, time.Since(started))
		return 0, fmt.Errorf("place order: %w", err)
	}

	// заказ уже принят: отмена ctx вызывающего не должна оставить отправленные позиции в корзине
	if clearErr := s.cart.RemoveSubmitted(context.WithoutCancel(ctx), draft.LineItems); clearErr != nil {
		logger.WithError(clearErr).Warn("order accepted but cart could not be persisted without submitted lines")
	}
	s.notify(domain.Notification{Level: domain.NotificationSuccess, Message: MessageOrderPlaced})
	s.publishSubmitted(logger, id, draft)

	s.mu.Lock()
	s.state = StateSucceeded
	s.lastErr = nil
	s.lastID = id
	s.mu.Unlock()

	s.metrics.RecordSubmissionFinished(metrics.ResultOK, time.Since(started))
	logger.WithField("order_id", id.Reference()).Info("order placed")
	return id, nil
}

// releaseGuard снимает флаг submitting, если Submit завершился без перехода в итоговое
// состояние (например, panic в PlaceOrder, перехваченный выше по стеку).
func (s *Submitter) releaseGuard() {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

func (s *Submitter) fail(logger *log.Entry, err error) {
	logger.WithError(err).Warn("order submission failed")
	s.notify(domain.Notification{Level: domain.NotificationError, Message: FailureMessage(err)})

	s.mu.Lock()
	s.state = StateIdle
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Submitter) publishSubmitted(logger *log.Entry, id domain.OrderID, draft domain.OrderDraft) {
	if s.publisher == nil {
		return
	}
	event := kafka.NewOrderEvent(kafka.EventTypeOrderSubmitted, id, domain.OrderStatusPending, map[string]interface{}{
		"customer_email": draft.CustomerEmail,
		"lines":          len(draft.LineItems),
	})
	event.TotalAmount = draft.TotalAmount.String()
	if err := s.publisher.PublishEvent(kafka.TopicOrderEvents, id.Reference(), event); err != nil {
		logger.WithError(err).Warn("failed to publish order.submitted")
	}
}

func (s *Submitter) notify(n domain.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

// FailureMessage выбирает самый конкретный текст ошибки: detail сервера или общий текст.
func FailureMessage(err error) string {
	if detail, ok := domain.RemoteDetail(err); ok {
		return "Error: " + detail
	}
	return MessageGenericFailed
}
