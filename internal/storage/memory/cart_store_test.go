package memory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestCartStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCartStore()

	empty, err := store.Load(ctx)
	if err != nil || !empty.IsEmpty() {
		t.Fatalf("expected empty cart, got %+v (err=%v)", empty, err)
	}

	cart := domain.Cart{Items: []domain.CartItem{
		{ID: 1, Name: "Mug", Price: decimal.RequireFromString("10.00"), Category: "kitchen", Quantity: 2},
		{ID: 3, Name: "Notebook", Price: decimal.RequireFromString("25.50"), Category: "stationery", Quantity: 1},
	}}
	if err := store.Save(ctx, cart); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !loaded.Equal(cart) {
		t.Fatalf("round trip mismatch: %+v vs %+v", loaded, cart)
	}
}

func TestCartStore_CorruptPayloadLoadsEmpty(t *testing.T) {
	store := memory.NewCartStoreWithPayload([]byte(`{"not":"an array"`))

	cart, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("corrupt payload must not fail load: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestCartStore_SaveEmptyWritesArray(t *testing.T) {
	store := memory.NewCartStore()
	if err := store.Save(context.Background(), domain.Cart{}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got := string(store.Payload()); got != "[]" {
		t.Fatalf("expected [] payload, got %q", got)
	}
}
