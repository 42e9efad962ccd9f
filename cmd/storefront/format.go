package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/admin"
	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (r *runner) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
}

func (r *runner) printProducts(products []domain.Product) {
	w := r.table()
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Category, domain.FormatMoney(p.Price), p.StockQuantity)
	}
	_ = w.Flush()
}

func (r *runner) printCart(c domain.Cart) {
	if c.IsEmpty() {
		fmt.Fprintln(r.out, "Your cart is empty")
		return
	}
	w := r.table()
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tQTY\tSUBTOTAL")
	for _, item := range c.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", item.ID, item.Name, domain.FormatMoney(item.Price), item.Quantity, domain.FormatMoney(item.Subtotal()))
	}
	_ = w.Flush()
	fmt.Fprintf(r.out, "Items: %d  Total: %s\n", c.Count(), domain.FormatMoney(c.Total()))
}

func (r *runner) printOrders(orders []domain.Order, active int) {
	r.printOrderRows(orders)
	fmt.Fprintf(r.out, "Orders: %d  Active: %d\n", len(orders), active)
}

func (r *runner) printOrderRows(orders []domain.Order) {
	w := r.table()
	fmt.Fprintln(w, "REFERENCE\tCUSTOMER\tEMAIL\tTOTAL\tSTATUS\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			domain.FormatReference(domain.ReferencePrefixTransaction, o.ID),
			o.CustomerName, o.CustomerEmail, domain.FormatMoney(o.TotalAmount), o.Status,
			o.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func (r *runner) printStats(stats admin.Stats, products int) {
	fmt.Fprintf(r.out, "Total revenue: %s\n", domain.FormatMoney(stats.TotalSales))
	fmt.Fprintf(r.out, "Monthly sales: %s (%s%% of %s goal)\n",
		domain.FormatMoney(stats.MonthlySales), stats.GoalPercent().StringFixed(1),
		domain.FormatMoney(decimal.NewFromInt(admin.MonthlyGoal)))
	fmt.Fprintf(r.out, "Orders: %d  Active: %d  Products: %d\n", stats.TotalOrders, stats.ActiveOrders, products)
	if len(stats.RecentOrders) > 0 {
		fmt.Fprintln(r.out, "Recent orders:")
		r.printOrderRows(stats.RecentOrders)
	}
}

// printNotifications выводит уведомления, накопленные за команду.
func (r *runner) printNotifications(s *app.Session) {
	for _, n := range s.Recorder.Drain() {
		fmt.Fprintf(r.out, "[%s] %s\n", n.Level, n.Message)
	}
}
