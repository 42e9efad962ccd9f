package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/admin"
	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/client/orderapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Session связывает корзину, оформление и консоль администратора одной пользовательской сессии.
type Session struct {
	ID        string
	Config    Config
	Catalog   domain.Catalog
	Client    *orderapi.Client
	Cart      *cart.Service
	Checkout  *checkout.Submitter
	Board     *admin.Board
	Refresher *admin.Refresher
	Recorder  *notify.Recorder
	Health    *healthcheck.Handler
	Metrics   *metrics.StorefrontMetrics

	logger    *log.Entry
	deps      *runtimeDependencies
	producer  *kafka.Producer
	closeOnce sync.Once
	closeErr  error
}

// OpenSession проверяет конфигурацию, открывает хранилище корзины, подключает клиента
// Order Service и собирает цепочку уведомлений. Kafka необязательна.
func OpenSession(ctx context.Context, cfg Config, logger *log.Entry) (*Session, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger = logger.WithField("session_id", sessionID)

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := orderapi.New(orderapi.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.APITimeout,
		Retry:   orderapi.DefaultRetryConfig(),
	}, orderapi.WithLogger(logger.WithField("layer", "client")))
	if err != nil {
		_ = deps.close()
		return nil, err
	}

	// ошибка уже залогирована, сессия работает без Kafka
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger.WithField("layer", "kafka"))

	m := metrics.NewStorefrontMetrics()
	recorder := notify.NewRecorder()
	sinks := []domain.Notifier{
		notify.NewLogSink(logger.WithField("layer", "notify")),
		recorder,
	}
	if producer != nil {
		sinks = append(sinks, notify.NewKafkaSink(producer, sessionID, logger))
	}
	notifier := notify.NewFanout(m, sinks...)

	cartOpts := []cart.Option{
		cart.WithLogger(logger.WithField("component", "cart")),
		cart.WithMetrics(m),
	}
	cartSvc := cart.NewService(ctx, deps.cartStore, notifier, cartOpts...)

	checkoutOpts := []checkout.Option{
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithMetrics(m),
	}
	boardOpts := []admin.Option{
		admin.WithLogger(logger.WithField("component", "admin-board")),
		admin.WithMetrics(m),
		admin.WithLimit(cfg.OrderListLimit),
	}
	if producer != nil {
		checkoutOpts = append(checkoutOpts, checkout.WithPublisher(producer))
		boardOpts = append(boardOpts, admin.WithPublisher(producer))
	}

	board := admin.NewBoard(client, notifier, boardOpts...)
	refresher := admin.NewRefresher(board,
		admin.WithRefreshLogger(logger.WithField("component", "admin-refresher")),
		admin.WithInterval(cfg.RefreshInterval),
	)

	health := healthcheck.NewHandler(version.GetVersion())
	health.RegisterChecker("order-api", healthcheck.NewPingChecker("order-api", client.Ping))
	health.RegisterChecker("order-api-circuit", healthcheck.NewBreakerChecker("order-api-circuit", client.BreakerState))
	if deps.ping != nil {
		health.RegisterChecker("cart-store", healthcheck.NewPingChecker("cart-store", deps.ping))
	}

	logger.WithFields(log.Fields{
		"api_url":    cfg.APIURL,
		"cart_store": deps.driver,
		"kafka":      producer != nil,
	}).Info("session opened")

	return &Session{
		ID:        sessionID,
		Config:    cfg,
		Catalog:   client,
		Client:    client,
		Cart:      cartSvc,
		Checkout:  checkout.NewSubmitter(cartSvc, client, notifier, checkoutOpts...),
		Board:     board,
		Refresher: refresher,
		Recorder:  recorder,
		Health:    health,
		Metrics:   m,
		logger:    logger,
		deps:      deps,
		producer:  producer,
	}, nil
}

// Close отменяет незавершённые операции консоли и освобождает хранилище и Kafka.
// Повторный вызов возвращает результат первого.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.Board.Close()
		closeKafka(s.producer, s.logger)
		s.closeErr = s.deps.close()
		s.logger.Info("session closed")
	})
	return s.closeErr
}
