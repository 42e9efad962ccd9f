package domain

import (
	"context"
	"time"
)

// CartStore — долговременное зеркало корзины.
type CartStore interface {
	// Load читает корзину. Отсутствующие или повреждённые данные дают пустую корзину без ошибки;
	// ошибка возвращается только при недоступности хранилища.
	Load(ctx context.Context) (Cart, error)
	// Save атомарно перезаписывает сохранённое состояние.
	Save(ctx context.Context, cart Cart) error
}

// NotificationLevel задаёт тип уведомления для пользователя.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationInfo    NotificationLevel = "info"
	NotificationError   NotificationLevel = "error"
)

// Notification — результат операции, показываемый пользователю (toast/лог).
type Notification struct {
	Level   NotificationLevel
	Message string
	At      time.Time
}

// Notifier — внешний механизм показа уведомлений.
type Notifier interface {
	Notify(n Notification)
}

// OrderPlacer отправляет заявку в Order Service и возвращает ID принятого заказа.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, draft OrderDraft, idempotencyKey string) (OrderID, error)
}

// OrderAdmin — операции администратора над заказами в Order Service.
type OrderAdmin interface {
	ListOrders(ctx context.Context, limit int) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id OrderID, status OrderStatus) (Order, error)
	DeleteOrder(ctx context.Context, id OrderID) error
}

// OrderService объединяет все обращения к удалённому сервису заказов.
type OrderService interface {
	OrderPlacer
	OrderAdmin
}

// Catalog — доступ только на чтение к каталогу товаров.
type Catalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// EventPublisher публикует события жизненного цикла наружу; должен быть потокобезопасным.
type EventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}
