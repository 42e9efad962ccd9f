package orderapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Amount — денежная сумма, которая в JSON записывается голым числом без потери точности.
type Amount struct {
	decimal.Decimal
}

// NewAmount оборачивает decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON принимает как число, так и строку.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	return a.Decimal.UnmarshalJSON(data)
}

// Timestamp разбирает RFC3339 и «наивный» ISO-8601 без зоны (считается UTC).
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", raw)
}

// OrderItemRequest — позиция заявки.
type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest — тело POST /orders.
type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	ShippingAddress string             `json:"shipping_address"`
	TotalAmount     Amount             `json:"total_amount"`
	Items           []OrderItemRequest `json:"items"`
}

// NewCreateOrderRequest переводит заявку в формат сервиса заказов.
func NewCreateOrderRequest(draft domain.OrderDraft) CreateOrderRequest {
	items := make([]OrderItemRequest, 0, len(draft.LineItems))
	for _, line := range draft.LineItems {
		items = append(items, OrderItemRequest{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return CreateOrderRequest{
		CustomerName:    draft.CustomerName,
		CustomerEmail:   draft.CustomerEmail,
		ShippingAddress: draft.ShippingAddress,
		TotalAmount:     NewAmount(draft.TotalAmount),
		Items:           items,
	}
}

// Draft выполняет обратное преобразование (используется сервисом-заглушкой).
func (r CreateOrderRequest) Draft() domain.OrderDraft {
	lines := make([]domain.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return domain.OrderDraft{
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		ShippingAddress: r.ShippingAddress,
		TotalAmount:     r.TotalAmount.Decimal,
		LineItems:       lines,
	}
}

// StatusUpdateRequest — тело PUT /orders/{id}/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// OrderItemResponse — позиция принятого заказа.
type OrderItemResponse struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase Amount `json:"price_at_purchase"`
}

// OrderResponse — заказ в ответах сервиса.
type OrderResponse struct {
	ID              int64               `json:"id"`
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	ShippingAddress string              `json:"shipping_address"`
	TotalAmount     Amount              `json:"total_amount"`
	Status          string              `json:"status"`
	CreatedAt       Timestamp           `json:"created_at"`
	Items           []OrderItemResponse `json:"items"`
}

// Order переводит ответ в доменную запись. Статус не проверяется: неизвестные значения
// показываются как есть, а переходы из них отклоняет таблица переходов.
func (r OrderResponse) Order() domain.Order {
	return domain.Order{
		ID:              domain.OrderID(r.ID),
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		ShippingAddress: r.ShippingAddress,
		TotalAmount:     r.TotalAmount.Decimal,
		Status:          domain.OrderStatus(strings.ToLower(r.Status)),
		CreatedAt:       r.CreatedAt.Time,
	}
}

// ProductResponse — товар каталога.
type ProductResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Price         Amount `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	Category      string `json:"category"`
	ImageURL      string `json:"image_url,omitempty"`
}

// NewProductResponse строит ответ из доменного товара.
func NewProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         NewAmount(p.Price),
		StockQuantity: p.StockQuantity,
		Category:      p.Category,
		ImageURL:      p.ImageURL,
	}
}

func (r ProductResponse) Product() domain.Product {
	return domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price.Decimal,
		StockQuantity: r.StockQuantity,
		Category:      r.Category,
		ImageURL:      r.ImageURL,
	}
}

// ErrorResponse — тело ошибки. detail бывает строкой или списком ошибок валидации.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// NewErrorResponse строит тело со строковым detail.
func NewErrorResponse(detail string) ErrorResponse {
	raw, _ := json.Marshal(detail)
	return ErrorResponse{Detail: raw}
}

// Message возвращает человекочитаемый текст ошибки или пустую строку.
func (r ErrorResponse) Message() string {
	if len(r.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Detail, &text); err == nil {
		return text
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(r.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}
	return ""
}

func parseErrorDetail(body []byte) string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Message()
}
