package checkout

import (
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// BuildDraft собирает заявку из корзины и формы доставки.
// Пустоту корзины и заполненность формы проверяет вызывающий.
func BuildDraft(cart domain.Cart, form domain.ShippingForm) domain.OrderDraft {
	lines := make([]domain.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, domain.LineItem{ProductID: item.ID, Quantity: item.Quantity})
	}

	return domain.OrderDraft{
		CustomerName:    strings.TrimSpace(form.FullName),
		CustomerEmail:   strings.TrimSpace(form.Email),
		ShippingAddress: ComposeAddress(form),
		TotalAmount:     cart.Total(),
		LineItems:       lines,
	}
}

// ComposeAddress склеивает адрес в одну строку: "<address>, <city>, <zip>".
func ComposeAddress(form domain.ShippingForm) string {
	return strings.TrimSpace(form.Address) + ", " + strings.TrimSpace(form.City) + ", " + strings.TrimSpace(form.ZipCode)
}
