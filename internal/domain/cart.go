package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product — запись каталога, которую корзина читает, но никогда не изменяет.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url,omitempty"`
}

// CartItem — позиция корзины. Name, Price и Category фиксируются в момент добавления
// и не обновляются из каталога.
type CartItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageRef string          `json:"image_url,omitempty"`
	Quantity int             `json:"quantity"`
}

// Subtotal возвращает price*quantity без округления.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewCartItem снимает снимок товара каталога с количеством 1.
func NewCartItem(p Product) (CartItem, error) {
	if p.ID == 0 || !p.Price.IsPositive() {
		return CartItem{}, ErrInvalidProduct
	}
	return CartItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
		ImageRef: p.ImageURL,
		Quantity: 1,
	}, nil
}

// Cart — упорядоченный набор позиций с уникальными ID и quantity >= 1.
type Cart struct {
	Items []CartItem
}

// Find возвращает индекс позиции с заданным ID.
func (c Cart) Find(id int64) (int, bool) {
	for idx, item := range c.Items {
		if item.ID == id {
			return idx, true
		}
	}
	return -1, false
}

// Total — сумма price*quantity по всем позициям, полная точность.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count — суммарное количество единиц товара.
func (c Cart) Count() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty сообщает, есть ли в корзине позиции.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone возвращает независимую копию корзины.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Equal сравнивает корзины поэлементно; цены сравниваются как числа, а не по представлению.
func (c Cart) Equal(other Cart) bool {
	if len(c.Items) != len(other.Items) {
		return false
	}
	for idx, item := range c.Items {
		o := other.Items[idx]
		if item.ID != o.ID || item.Name != o.Name || item.Category != o.Category ||
			item.ImageRef != o.ImageRef || item.Quantity != o.Quantity || !item.Price.Equal(o.Price) {
			return false
		}
	}
	return true
}

// Validate проверяет инварианты корзины.
func (c Cart) Validate() error {
	seen := make(map[int64]struct{}, len(c.Items))
	for idx, item := range c.Items {
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("item[%d]: duplicate id %d", idx, item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Quantity < 1 {
			return fmt.Errorf("item[%d]: quantity %d < 1", idx, item.Quantity)
		}
		if !item.Price.IsPositive() {
			return fmt.Errorf("item[%d]: price must be positive", idx)
		}
	}
	return nil
}

// EncodeCart сериализует корзину в общий для всех хранилищ формат: JSON-массив позиций.
func EncodeCart(c Cart) ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

// DecodeCart разбирает сохранённую корзину. Любая ошибка оборачивает ErrCorruptCart.
func DecodeCart(data []byte) (Cart, error) {
	var items []CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	cart := Cart{Items: items}
	if len(items) == 0 {
		cart.Items = nil
	}
	if err := cart.Validate(); err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	return cart, nil
}

// FormatMoney округляет сумму до двух знаков только для отображения.
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
