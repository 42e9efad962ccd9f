package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label "result".
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
	ResultDeclined = "declined"
)

// StorefrontMetrics содержит метрики движка корзины и заказов.
// Все методы безопасны для nil-получателя: компоненты без метрик просто не пишут их.
type StorefrontMetrics struct {
	cartMutations *prometheus.CounterVec
	cartUnits     prometheus.Gauge
	cartLoads     *prometheus.CounterVec

	submissions        *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	submissionsActive  prometheus.Gauge

	statusTransitions *prometheus.CounterVec
	orderDeletions    *prometheus.CounterVec
	refreshRuns       *prometheus.CounterVec
	refreshDuration   prometheus.Histogram

	notifications *prometheus.CounterVec
}

// NewStorefrontMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStorefrontMetrics() *StorefrontMetrics {
	return NewStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorefrontMetricsWithRegisterer регистрирует метрики в переданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorefrontMetrics{
		cartMutations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations grouped by operation.",
		}, []string{"op"})),
		cartUnits: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_cart_units",
			Help: "Number of product units currently held in the cart.",
		})),
		cartLoads: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_loads_total",
			Help: "Cart hydrations from durable storage grouped by result.",
		}, []string{"result"})),
		submissions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_submissions_total",
			Help: "Order submissions grouped by result.",
		}, []string{"result"})),
		submissionDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_submission_duration_seconds",
			Help:    "Duration of order submission round trips in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})),
		submissionsActive: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_order_submissions_in_flight",
			Help: "Number of order submissions awaiting the order service.",
		})),
		statusTransitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Admin order status transitions grouped by target status and result.",
		}, []string{"to", "result"})),
		orderDeletions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_deletions_total",
			Help: "Admin order deletions grouped by result.",
		}, []string{"result"})),
		refreshRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_refresh_runs_total",
			Help: "Periodic order list refreshes grouped by result.",
		}, []string{"result"})),
		refreshDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_refresh_duration_seconds",
			Help:    "Duration of order list refreshes in seconds.",
			Buckets: prometheus.DefBuckets,
		})),
		notifications: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Notifications emitted to the user grouped by level.",
		}, []string{"level"})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordCartMutation учитывает изменение корзины и текущее число единиц.
func (m *StorefrontMetrics) RecordCartMutation(op string, units int) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
	m.cartUnits.Set(float64(units))
}

// RecordCartLoad учитывает гидрацию корзины при старте сессии.
func (m *StorefrontMetrics) RecordCartLoad(result string, units int) {
	if m == nil {
		return
	}
	m.cartLoads.WithLabelValues(result).Inc()
	m.cartUnits.Set(float64(units))
}

// RecordSubmissionStarted увеличивает число отправок в полёте.
func (m *StorefrontMetrics) RecordSubmissionStarted() {
	if m == nil {
		return
	}
	m.submissionsActive.Inc()
}

// RecordSubmissionFinished фиксирует результат и длительность отправки.
func (m *StorefrontMetrics) RecordSubmissionFinished(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.submissionsActive.Dec()
	m.submissions.WithLabelValues(result).Inc()
	m.submissionDuration.Observe(duration.Seconds())
}

// RecordStatusTransition учитывает попытку смены статуса.
func (m *StorefrontMetrics) RecordStatusTransition(to, result string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(to, result).Inc()
}

// RecordOrderDeletion учитывает попытку удаления заказа.
func (m *StorefrontMetrics) RecordOrderDeletion(result string) {
	if m == nil {
		return
	}
	m.orderDeletions.WithLabelValues(result).Inc()
}

// RecordRefresh учитывает периодическое обновление списка заказов.
func (m *StorefrontMetrics) RecordRefresh(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshRuns.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(duration.Seconds())
}

// RecordNotification учитывает показанное уведомление.
func (m *StorefrontMetrics) RecordNotification(level string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(level).Inc()
}
