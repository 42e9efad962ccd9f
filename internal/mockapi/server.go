// Package mockapi — локальная реализация Order/Catalog Service для разработки и тестов.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/client/orderapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// DefaultListLimit применяется к GET /orders без параметра limit.
const DefaultListLimit = 100

// Server обслуживает REST-эндпоинты сервиса заказов и каталога.
type Server struct {
	orders   *memory.OrderRepository
	products *memory.ProductRepository
	logger   *log.Entry

	mu        sync.Mutex
	processed map[string]domain.OrderID
}

// New создаёт сервер поверх репозиториев. nil-репозитории заменяются пустыми.
func New(orders *memory.OrderRepository, products *memory.ProductRepository, logger *log.Entry) *Server {
	if orders == nil {
		orders = memory.NewOrderRepository()
	}
	if products == nil {
		products = memory.NewProductRepository(nil)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Server{
		orders:    orders,
		products:  products,
		logger:    logger.WithField("component", "order-api-mock"),
		processed: make(map[string]domain.OrderID),
	}
}

// NewDemo создаёт сервер с демонстрационным каталогом и пустым списком заказов.
func NewDemo(logger *log.Entry) *Server {
	return New(memory.NewOrderRepository(), memory.NewProductRepository(memory.DemoCatalog()), logger)
}

// Ping сообщает о готовности: сервис без каталога бесполезен для витрины.
func (s *Server) Ping(_ context.Context) error {
	if len(s.products.List()) == 0 {
		return errors.New("catalog is empty")
	}
	return nil
}

// Router собирает chi-роутер со всеми эндпоинтами.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/{productID}", s.getProduct)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.createOrder)
		r.Get("/", s.listOrders)
		r.Get("/{orderID}", s.getOrder)
		r.Put("/{orderID}/status", s.updateStatus)
		r.Delete("/{orderID}", s.deleteOrder)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(started),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	products := s.products.List()
	resp := make([]orderapi.ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, orderapi.NewProductResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondValidation(w, "product id must be an integer")
		return
	}
	p, ok := s.products.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, orderapi.NewProductResponse(p))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderapi.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondValidation(w, "order must contain at least one item")
		return
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			respondValidation(w, "quantity must be at least 1")
			return
		}
	}

	key := r.Header.Get(orderapi.HeaderIdempotencyKey)

	// ключ удерживается на всё время обработки, чтобы повтор не создал второй заказ
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if id, ok := s.processed[key]; ok {
			if stored, err := s.orders.Get(id); err == nil {
				s.logger.WithFields(log.Fields{"order_id": id, "key": key}).Info("idempotent replay")
				respondJSON(w, http.StatusOK, orderResponse(stored))
				return
			}
		}
	}

	draft := req.Draft()
	lines, err := s.products.Reserve(draft.LineItems)
	if err != nil {
		var stockErr *memory.StockError
		if errors.As(err, &stockErr) && stockErr.Missing {
			respondError(w, http.StatusNotFound, stockErr.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored := s.orders.Create(memory.StoredOrder{
		Order: domain.Order{
			CustomerName:    draft.CustomerName,
			CustomerEmail:   draft.CustomerEmail,
			ShippingAddress: draft.ShippingAddress,
			TotalAmount:     draft.TotalAmount,
		},
		Lines: lines,
	})
	if key != "" {
		s.processed[key] = stored.ID
	}

	s.logger.WithFields(log.Fields{
		"order_id": stored.ID,
		"items":    len(lines),
		"total":    stored.TotalAmount.String(),
	}).Info("order created")
	respondJSON(w, http.StatusOK, orderResponse(stored))
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondValidation(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	orders := s.orders.List(limit)
	resp := make([]orderapi.OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse(o))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	stored, err := s.orders.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	respondJSON(w, http.StatusOK, orderResponse(stored))
}

// updateStatus принимает только известные статусы; таблицу переходов сервис не проверяет.
func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req orderapi.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, "invalid request body")
		return
	}
	status := domain.OrderStatus(req.Status)
	if !status.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status: %s", req.Status))
		return
	}

	stored, err := s.orders.UpdateStatus(id, status)
	if err != nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	s.logger.WithFields(log.Fields{"order_id": id, "status": status}).Info("order status updated")
	respondJSON(w, http.StatusOK, orderResponse(stored))
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := s.orders.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	s.logger.WithField("order_id", id).Info("order deleted")
	respondJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (domain.OrderID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		respondValidation(w, "order id must be an integer")
		return 0, false
	}
	return domain.OrderID(id), true
}

func orderResponse(o memory.StoredOrder) orderapi.OrderResponse {
	items := make([]orderapi.OrderItemResponse, 0, len(o.Lines))
	for idx, line := range o.Lines {
		items = append(items, orderapi.OrderItemResponse{
			ID:              int64(idx + 1),
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtPurchase: orderapi.NewAmount(line.PriceAtPurchase),
		})
	}
	return orderapi.OrderResponse{
		ID:              int64(o.ID),
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     orderapi.NewAmount(o.TotalAmount),
		Status:          string(o.Status),
		CreatedAt:       orderapi.Timestamp{Time: o.CreatedAt},
		Items:           items,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, orderapi.NewErrorResponse(detail))
}

// respondValidation повторяет формат ошибок валидации: detail содержит список объектов с полем msg.
func respondValidation(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"detail": []map[string]string{{"msg": msg}},
	})
}
