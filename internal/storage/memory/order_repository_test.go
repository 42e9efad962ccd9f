package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newOrder(name string, created time.Time) memory.StoredOrder {
	return memory.StoredOrder{
		Order: domain.Order{
			CustomerName:    name,
			CustomerEmail:   "buyer@example.com",
			ShippingAddress: "1 Main St, Springfield, 12345",
			TotalAmount:     decimal.RequireFromString("45.50"),
			CreatedAt:       created,
		},
		Lines: []memory.OrderLine{{ProductID: 1, Quantity: 2, PriceAtPurchase: decimal.RequireFromString("10.00")}},
	}
}

func TestOrderRepository_CreateAssignsSequentialIDs(t *testing.T) {
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	first := repo.Create(newOrder("Ann", now))
	second := repo.Create(newOrder("Bob", now))

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", first.Status)
	}

	stored, err := repo.Get(second.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.CustomerName != "Bob" || len(stored.Lines) != 1 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}
}

func TestOrderRepository_ListNewestFirst(t *testing.T) {
	repo := memory.NewOrderRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.Create(newOrder("old", base))
	repo.Create(newOrder("new", base.Add(time.Hour)))
	repo.Create(newOrder("mid", base.Add(time.Minute)))

	orders := repo.List(0)
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	if orders[0].CustomerName != "new" || orders[2].CustomerName != "old" {
		t.Fatalf("unexpected order: %s, %s, %s", orders[0].CustomerName, orders[1].CustomerName, orders[2].CustomerName)
	}

	if limited := repo.List(2); len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
}

func TestOrderRepository_UpdateStatusAndDelete(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := repo.Create(newOrder("Ann", time.Now()))

	updated, err := repo.UpdateStatus(order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", updated.Status)
	}

	if err := repo.Delete(order.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
	if err := repo.Delete(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second delete, got %v", err)
	}
	if _, err := repo.UpdateStatus(42, domain.OrderStatusCancelled); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for missing order, got %v", err)
	}
}
