package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StockError описывает отказ резервирования: товара нет или не хватает остатка.
type StockError struct {
	ProductID   int64
	ProductName string
	Missing     bool
}

func (e *StockError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Product %d not found", e.ProductID)
	}
	return fmt.Sprintf("Not enough stock for %s", e.ProductName)
}

// ProductRepository — in-memory каталог с остатками.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[int64]domain.Product
}

// NewProductRepository заполняет каталог переданными товарами.
func NewProductRepository(seed []domain.Product) *ProductRepository {
	repo := &ProductRepository{items: make(map[int64]domain.Product, len(seed))}
	for _, p := range seed {
		repo.items[p.ID] = p
	}
	return repo
}

// List возвращает каталог, упорядоченный по ID.
func (r *ProductRepository) List() []domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, p := range r.items {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get возвращает товар по ID.
func (r *ProductRepository) Get(id int64) (domain.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	return p, ok
}

// Reserve проверяет наличие по всем позициям и списывает остатки одной операцией.
// При отказе остатки не меняются.
func (r *ProductRepository) Reserve(items []domain.LineItem) ([]OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	required := make(map[int64]int, len(items))
	for _, item := range items {
		p, ok := r.items[item.ProductID]
		if !ok {
			return nil, &StockError{ProductID: item.ProductID, Missing: true}
		}
		required[item.ProductID] += item.Quantity
		if p.StockQuantity < required[item.ProductID] {
			return nil, &StockError{ProductID: p.ID, ProductName: p.Name}
		}
	}

	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		p := r.items[item.ProductID]
		p.StockQuantity -= item.Quantity
		r.items[item.ProductID] = p
		lines = append(lines, OrderLine{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: p.Price,
		})
	}
	return lines, nil
}

// DemoCatalog — стартовый набор товаров сервиса-заглушки.
func DemoCatalog() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Wireless Headphones", Description: "Over-ear, 30h battery", Price: decimal.RequireFromString("79.99"), StockQuantity: 25, Category: "electronics", ImageURL: "/images/headphones.png"},
		{ID: 2, Name: "Coffee Mug", Description: "Ceramic, 350 ml", Price: decimal.RequireFromString("10.00"), StockQuantity: 100, Category: "kitchen", ImageURL: "/images/mug.png"},
		{ID: 3, Name: "Notebook", Description: "A5, dotted", Price: decimal.RequireFromString("25.50"), StockQuantity: 40, Category: "stationery", ImageURL: "/images/notebook.png"},
		{ID: 4, Name: "Desk Lamp", Description: "LED, dimmable", Price: decimal.RequireFromString("45.00"), StockQuantity: 10, Category: "home", ImageURL: "/images/lamp.png"},
		{ID: 5, Name: "Limited Poster", Description: "Signed print", Price: decimal.RequireFromString("120.00"), StockQuantity: 1, Category: "art", ImageURL: "/images/poster.png"},
	}
}
