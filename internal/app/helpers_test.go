package app

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/mockapi"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

// newMockAPI поднимает сервис заказов с демонстрационным каталогом.
func newMockAPI(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(mockapi.NewDemo(quietLogger()).Router())
	t.Cleanup(srv.Close)
	return srv.URL
}

func sampleCartItem() domain.CartItem {
	return domain.CartItem{
		ID:       4,
		Name:     "Desk Lamp",
		Price:    decimal.RequireFromString("45.00"),
		Category: "home",
		Quantity: 1,
	}
}

// memoryConfig — конфигурация сессии без внешних зависимостей, кроме apiURL.
func memoryConfig(apiURL string) Config {
	cfg := DefaultConfig()
	cfg.APIURL = apiURL
	cfg.CartStore = StoreDriverMemory
	cfg.KafkaBrokers = nil
	return cfg
}
