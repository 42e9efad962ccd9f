package admin

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// RecentOrdersLimit — сколько последних заказов попадает в сводку.
	RecentOrdersLimit = 5
	// MonthlyGoal — месячный план продаж для шкалы прогресса.
	MonthlyGoal = 5000
)

// Stats — сводка для панели администратора, посчитанная по локальной коллекции.
// Отменённые заказы в выручку не входят.
type Stats struct {
	TotalOrders  int
	ActiveOrders int
	TotalSales   decimal.Decimal
	MonthlySales decimal.Decimal
	RecentOrders []domain.Order
}

// GoalPercent — доля месячного плана, не больше 100.
func (s Stats) GoalPercent() decimal.Decimal {
	percent := s.MonthlySales.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(MonthlyGoal))
	if percent.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return percent.Round(1)
}

// Stats считает сводку; месяц определяется по now в UTC.
func (b *Board) Stats(now time.Time) Stats {
	orders := b.Orders()
	now = now.UTC()

	stats := Stats{
		TotalOrders:  len(orders),
		TotalSales:   decimal.Zero,
		MonthlySales: decimal.Zero,
	}
	for _, o := range orders {
		if o.Status == domain.OrderStatusPending {
			stats.ActiveOrders++
		}
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		stats.TotalSales = stats.TotalSales.Add(o.TotalAmount)
		created := o.CreatedAt.UTC()
		if created.Year() == now.Year() && created.Month() == now.Month() {
			stats.MonthlySales = stats.MonthlySales.Add(o.TotalAmount)
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if len(orders) > RecentOrdersLimit {
		orders = orders[:RecentOrdersLimit]
	}
	stats.RecentOrders = orders
	return stats
}
