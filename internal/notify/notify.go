// Package notify доставляет пользовательские уведомления: в лог, в память, в Kafka.
package notify

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// LogSink пишет уведомления в logrus; error-уведомления идут уровнем Warn.
type LogSink struct {
	logger *log.Entry
}

func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &LogSink{logger: logger.WithField("component", "notifications")}
}

func (s *LogSink) Notify(n domain.Notification) {
	entry := s.logger.WithField("level_ui", string(n.Level))
	if n.Level == domain.NotificationError {
		entry.Warn(n.Message)
		return
	}
	entry.Info(n.Message)
}

// Recorder запоминает уведомления в памяти; потокобезопасен.
type Recorder struct {
	mu    sync.Mutex
	items []domain.Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(n domain.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All возвращает копию всех полученных уведомлений.
func (r *Recorder) All() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.items...)
}

// Last возвращает последнее уведомление.
func (r *Recorder) Last() (domain.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return domain.Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Drain возвращает накопленное и очищает буфер.
func (r *Recorder) Drain() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.items
	r.items = nil
	return items
}

// Fanout рассылает уведомление всем получателям по порядку и проставляет время.
type Fanout struct {
	sinks   []domain.Notifier
	metrics *metrics.StorefrontMetrics
	now     func() time.Time
}

func NewFanout(m *metrics.StorefrontMetrics, sinks ...domain.Notifier) *Fanout {
	filtered := make([]domain.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Fanout{sinks: filtered, metrics: m, now: time.Now}
}

func (f *Fanout) Notify(n domain.Notification) {
	if n.At.IsZero() {
		n.At = f.now().UTC()
	}
	f.metrics.RecordNotification(string(n.Level))
	for _, s := range f.sinks {
		s.Notify(n)
	}
}

// KafkaSink публикует уведомления в топик storefront.notifications.
// Ошибка публикации только логируется: уведомление уже показано пользователю.
type KafkaSink struct {
	publisher domain.EventPublisher
	sessionID string
	logger    *log.Entry
}

func NewKafkaSink(publisher domain.EventPublisher, sessionID string, logger *log.Entry) *KafkaSink {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &KafkaSink{
		publisher: publisher,
		sessionID: sessionID,
		logger:    logger.WithField("component", "notifications-kafka"),
	}
}

func (s *KafkaSink) Notify(n domain.Notification) {
	event := kafka.NewNotificationEvent(s.sessionID, n)
	if err := s.publisher.PublishEvent(kafka.TopicNotifications, s.sessionID, event); err != nil {
		s.logger.WithError(err).Warn("failed to publish notification")
	}
}

var (
	_ domain.Notifier = (*LogSink)(nil)
	_ domain.Notifier = (*Recorder)(nil)
	_ domain.Notifier = (*Fanout)(nil)
	_ domain.Notifier = (*KafkaSink)(nil)
)
