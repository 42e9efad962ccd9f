package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	// HeaderIdempotencyKey передаётся с каждой попыткой оформления заказа.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderRequestID связывает запрос с логами сервиса.
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 4 << 20
)

// RetryConfig управляет повторами идемпотентных GET-запросов.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Config описывает подключение к Order/Catalog Service.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
}

// Options задаёт необязательные зависимости клиента.
type Options struct {
	Logger     *log.Entry
	HTTPClient *http.Client
}

// Option модифицирует Options.
type Option func(*Options)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithHTTPClient подменяет транспорт (httptest, прокси).
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

type rawResponse struct {
	status int
	body   []byte
}

// Client — REST-клиент сервиса заказов и каталога.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	retry   RetryConfig
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	group   singleflight.Group
	logger  *log.Entry
}

// New создаёт клиента. BaseURL обязателен.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("order api base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse order api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("order api url %q must be absolute", cfg.BaseURL)
	}

	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("component", "order-api-client")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := cfg.Retry
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		retry:   retry,
		timeout: timeout,
		breaker: newBreaker("order-service", logger),
		logger:  logger,
	}, nil
}

func newBreaker(name string, logger *log.Entry) *gobreaker.CircuitBreaker[*rawResponse] {
	return gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
		// отмена запроса вызывающим не говорит о здоровье сервиса
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// BreakerState возвращает текущее состояние circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// PlaceOrder отправляет заявку; ключ идемпотентности передаётся заголовком.
func (c *Client) PlaceOrder(ctx context.Context, draft domain.OrderDraft, idempotencyKey string) (domain.OrderID, error) {
	const op = "place order"

	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set(HeaderIdempotencyKey, idempotencyKey)
	}
	resp, err := c.do(ctx, op, http.MethodPost, "/orders", nil, NewCreateOrderRequest(draft), headers)
	if err != nil {
		return 0, err
	}

	var order OrderResponse
	if err := decode(op, resp, &order); err != nil {
		return 0, err
	}
	c.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"key":      idempotencyKey,
	}).Info("order placed")
	return domain.OrderID(order.ID), nil
}

// ListOrders возвращает последние заказы; limit <= 0 не ограничивает выборку.
func (c *Client) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	const op = "list orders"

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	resp, err := c.do(ctx, op, http.MethodGet, "/orders", query, nil, nil)
	if err != nil {
		return nil, err
	}

	var payload []OrderResponse
	if err := decode(op, resp, &payload); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(payload))
	for _, o := range payload {
		orders = append(orders, o.Order())
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус заказа на сервере.
func (c *Client) UpdateOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (domain.Order, error) {
	const op = "update order status"

	path := "/orders/" + id.String() + "/status"
	resp, err := c.do(ctx, op, http.MethodPut, path, nil, StatusUpdateRequest{Status: string(status)}, nil)
	if err != nil {
		return domain.Order{}, err
	}

	var order OrderResponse
	if err := decode(op, resp, &order); err != nil {
		return domain.Order{}, err
	}
	return order.Order(), nil
}

// DeleteOrder удаляет заказ.
func (c *Client) DeleteOrder(ctx context.Context, id domain.OrderID) error {
	_, err := c.do(ctx, "delete order", http.MethodDelete, "/orders/"+id.String(), nil, nil, nil)
	return err
}

// ListProducts возвращает каталог.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "list products"

	resp, err := c.do(ctx, op, http.MethodGet, "/products", nil, nil, nil)
	if err != nil {
		return nil, err
	}

	var payload []ProductResponse
	if err := decode(op, resp, &payload); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(payload))
	for _, p := range payload {
		products = append(products, p.Product())
	}
	return products, nil
}

// GetProduct возвращает товар; параллельные запросы одного ID схлопываются в один.
// Общий запрос не зависит от отмены ctx первого вызывающего и ограничен таймаутом клиента;
// каждый вызывающий перестаёт ждать по своему ctx.
func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	const op = "get product"

	key := "product:" + strconv.FormatInt(id, 10)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		resp, err := c.do(sharedCtx, op, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, nil, nil)
		if err != nil {
			return nil, err
		}
		var payload ProductResponse
		if err := decode(op, resp, &payload); err != nil {
			return nil, err
		}
		return payload.Product(), nil
	})

	select {
	case <-ctx.Done():
		return domain.Product{}, &domain.RemoteError{Op: op, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, res.Err
		}
		if res.Shared {
			c.logger.WithField("product_id", id).Debug("product lookup shared")
		}
		return res.Val.(domain.Product), nil
	}
}

// Ping проверяет доступность сервиса.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, "/healthz", nil, nil, nil)
	return err
}

// do выполняет запрос через circuit breaker. GET повторяется с экспоненциальной задержкой,
// остальные методы выполняются ровно один раз.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body interface{}, headers http.Header) (*rawResponse, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.retry.MaxAttempts
	}

	delay := c.retry.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.breaker.Execute(func() (*rawResponse, error) {
			return c.roundTrip(ctx, op, method, target.String(), payload, headers)
		})
		if err == nil {
			if resp.status >= 400 {
				return nil, remoteError(op, resp)
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.RemoteError{Op: op, Err: err}
		}
		lastErr = err
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("order api request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * c.retry.BackoffFactor)
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
	return nil, lastErr
}

// roundTrip возвращает ошибку только для сбоев транспорта и 5xx; их и считает circuit breaker.
func (c *Client) roundTrip(ctx context.Context, op, method, target string, payload []byte, headers http.Header) (*rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.RemoteError{Op: op, StatusCode: httpResp.StatusCode, Err: err}
	}

	resp := &rawResponse{status: httpResp.StatusCode, body: body}
	if resp.status >= 500 {
		return nil, remoteError(op, resp)
	}
	return resp, nil
}

func remoteError(op string, resp *rawResponse) error {
	return &domain.RemoteError{
		Op:         op,
		StatusCode: resp.status,
		Detail:     parseErrorDetail(resp.body),
	}
}

func decode(op string, resp *rawResponse, out interface{}) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var (
	_ domain.OrderService = (*Client)(nil)
	_ domain.Catalog      = (*Client)(nil)
)
