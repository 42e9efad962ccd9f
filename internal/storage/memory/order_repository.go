package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderLine — позиция принятого заказа с ценой на момент покупки.
type OrderLine struct {
	ProductID       int64
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// StoredOrder — заказ на стороне Order Service вместе с позициями.
type StoredOrder struct {
	domain.Order
	Lines []OrderLine
}

// OrderRepository — in-memory хранилище заказов сервиса-заглушки.
type OrderRepository struct {
	mu     sync.RWMutex
	nextID domain.OrderID
	items  map[domain.OrderID]StoredOrder
	now    func() time.Time
}

// NewOrderRepository возвращает пустой репозиторий с последовательной выдачей ID начиная с 1.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		items: make(map[domain.OrderID]StoredOrder),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create присваивает заказу ID, статус pending и время создания.
func (r *OrderRepository) Create(order StoredOrder) StoredOrder {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	order.Status = domain.OrderStatusPending
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now()
	}
	order.Lines = append([]OrderLine(nil), order.Lines...)
	r.items[order.ID] = order
	return order
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *OrderRepository) Get(id domain.OrderID) (StoredOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return StoredOrder{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// List возвращает заказы от новых к старым, ограничивая выборку limit (если >0).
func (r *OrderRepository) List(limit int) []StoredOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]StoredOrder, 0, len(r.items))
	for _, order := range r.items {
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// UpdateStatus перезаписывает статус без проверки переходов, как это делает удалённый сервис.
func (r *OrderRepository) UpdateStatus(id domain.OrderID, status domain.OrderStatus) (StoredOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return StoredOrder{}, domain.ErrOrderNotFound
	}
	order.Status = status
	r.items[id] = order
	return order, nil
}

// Delete удаляет заказ вместе с позициями.
func (r *OrderRepository) Delete(id domain.OrderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.items, id)
	return nil
}
