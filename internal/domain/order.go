package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа, наблюдаемый администратором.
type OrderStatus string

const (
	// OrderStatusPending — заказ принят и ожидает исполнения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusDelivered — заказ доставлен.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions — явная таблица переходов. Терминальные статусы не имеют исходящих переходов.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: nil,
	OrderStatusCancelled: nil,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// Next возвращает статусы, в которые разрешён переход.
func (s OrderStatus) Next() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

// ParseOrderStatus нормализует пользовательский ввод.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return status, nil
}

// CheckTransition возвращает ErrIllegalTransition, если переход from → to запрещён.
// Переход в тот же статус допустим и считается no-op на стороне вызывающего.
func CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if from == to {
		return nil
	}
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// OrderID — непрозрачный идентификатор заказа, выданный Order Service.
type OrderID int64

const (
	// ReferencePrefixOrder используется на странице подтверждения заказа.
	ReferencePrefixOrder = "ORD"
	// ReferencePrefixTransaction используется в таблице заказов админки.
	ReferencePrefixTransaction = "TX"
)

// Reference форматирует ID для отображения покупателю: ORD-0007.
func (id OrderID) Reference() string {
	return FormatReference(ReferencePrefixOrder, id)
}

func (id OrderID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// FormatReference дополняет ID нулями до четырёх знаков.
func FormatReference(prefix string, id OrderID) string {
	return fmt.Sprintf("%s-%04d", prefix, int64(id))
}

// Order — запись Order Service. Движок ей не владеет, только отображает и меняет статус.
type Order struct {
	ID              OrderID
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	CreatedAt       time.Time
}

// PaymentMethod — способ оплаты из формы оформления.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cod"
	PaymentMethodCard           PaymentMethod = "card"
)

// ShippingForm — данные, введённые покупателем при оформлении.
type ShippingForm struct {
	FullName      string
	Email         string
	Address       string
	City          string
	ZipCode       string
	PaymentMethod PaymentMethod
}

// Validate возвращает список незаполненных обязательных полей.
// Вызывающий использует результат, чтобы не показывать действие отправки.
func (f ShippingForm) Validate() []error {
	var errs []error
	if strings.TrimSpace(f.FullName) == "" {
		errs = append(errs, ErrFullNameRequired)
	}
	if strings.TrimSpace(f.Email) == "" {
		errs = append(errs, ErrEmailRequired)
	}
	if strings.TrimSpace(f.Address) == "" {
		errs = append(errs, ErrAddressRequired)
	}
	if strings.TrimSpace(f.City) == "" {
		errs = append(errs, ErrCityRequired)
	}
	if strings.TrimSpace(f.ZipCode) == "" {
		errs = append(errs, ErrZipCodeRequired)
	}
	switch f.PaymentMethod {
	case "", PaymentMethodCashOnDelivery, PaymentMethodCard:
	default:
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	return errs
}

// LineItem — позиция заявки: только товар и количество, цену определяет сервер.
type LineItem struct {
	ProductID int64
	Quantity  int
}

// OrderDraft — одноразовая заявка на заказ, никогда не сохраняется локально.
type OrderDraft struct {
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	TotalAmount     decimal.Decimal
	LineItems       []LineItem
}
