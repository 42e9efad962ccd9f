package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderSubmitted     EventType = "order.submitted"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderDeleted       EventType = "order.deleted"

	EventTypeNotification EventType = "notification.emitted"
)

// HeaderEventType дублирует тип события в заголовке, чтобы потребитель мог фильтровать без разбора JSON.
const HeaderEventType = "event_type"

// typedEvent реализуют события, тип которых попадает в заголовок сообщения.
type typedEvent interface {
	Type() EventType
}

// Topics для Kafka
const (
	TopicOrderEvents   = "storefront.order.events"
	TopicNotifications = "storefront.notifications"
)

// OrderEvent — событие жизненного цикла заказа, инициированное витриной или админкой.
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     int64                  `json:"order_id"`
	Reference   string                 `json:"reference"`
	Status      string                 `json:"status,omitempty"`
	TotalAmount string                 `json:"total_amount,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationEvent — копия уведомления, показанного пользователю.
type NotificationEvent struct {
	EventType EventType `json:"event_type"`
	SessionID string    `json:"session_id,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, id domain.OrderID, status domain.OrderStatus, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   int64(id),
		Reference: id.Reference(),
		Status:    string(status),
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// NewNotificationEvent упаковывает уведомление для публикации.
func NewNotificationEvent(sessionID string, n domain.Notification) *NotificationEvent {
	at := n.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &NotificationEvent{
		EventType: EventTypeNotification,
		SessionID: sessionID,
		Level:     string(n.Level),
		Message:   n.Message,
		Timestamp: at,
	}
}

func (e *OrderEvent) Type() EventType { return e.EventType }

func (e *NotificationEvent) Type() EventType { return e.EventType }
