package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/storefront/internal/client/orderapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opScenario = "scenario"
	opPlace    = "PlaceOrder"
	opDeliver  = "DeliverOrder"
	opCancel   = "CancelOrder"
)

type loadMode string

const (
	modePlace        loadMode = "place"
	modePlaceDeliver loadMode = "place-deliver"
	modePlaceCancel  loadMode = "place-cancel"
)

type config struct {
	apiURL      string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	productID   int64
	quantity    int
	customerTag string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.apiURL, "api-url", "http://localhost:8000", "Order Service base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 1m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent shoppers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-deliver | place-cancel")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "percent of place-deliver scenarios cancelled instead (0..100)")
	fs.Int64Var(&cfg.productID, "product", 2, "catalog product id to order")
	fs.IntVar(&cfg.quantity, "qty", 1, "quantity per order")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "customer name prefix")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case strings.TrimSpace(cfg.apiURL) == "":
		return cfg, errors.New("api-url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.productID <= 0:
		return cfg, errors.New("product must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modePlace, modePlaceDeliver, modePlaceCancel:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// loadTarget — то, что нужно генератору от сервисов заказов и каталога.
type loadTarget interface {
	domain.OrderService
	domain.Catalog
}

// run прогоняет сценарии и возвращает отчёт; ошибка означает невозможность начать прогон.
func run(ctx context.Context, cfg config, target loadTarget) (report, error) {
	product, err := target.GetProduct(ctx, cfg.productID)
	if err != nil {
		return report{}, fmt.Errorf("load product %d: %w", cfg.productID, err)
	}
	total := product.Price.Mul(decimal.NewFromInt(int64(cfg.quantity)))

	startedAt := time.Now()
	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				runScenario(ctx, target, cfg, index, total, col)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, target domain.OrderService, cfg config, index int, total decimal.Decimal, col *collector) {
	started := time.Now()
	outcome := outcomeOK
	defer func() { col.record(opScenario, time.Since(started), outcome) }()

	draft := domain.OrderDraft{
		CustomerName:    fmt.Sprintf("%s-%d", cfg.customerTag, index),
		CustomerEmail:   fmt.Sprintf("%s-%d@example.com", cfg.customerTag, index),
		ShippingAddress: "1 Load St, Testville, 00000",
		TotalAmount:     total,
		LineItems:       []domain.LineItem{{ProductID: cfg.productID, Quantity: cfg.quantity}},
	}

	var id domain.OrderID
	err := timed(ctx, cfg.timeout, col, opPlace, func(ctx context.Context) error {
		var err error
		id, err = target.PlaceOrder(ctx, draft, uuid.NewString())
		return err
	})
	if err != nil {
		outcome = classify(err)
		return
	}

	var op string
	var status domain.OrderStatus
	switch {
	case cfg.mode == modePlaceCancel || (cfg.mode == modePlaceDeliver && shouldCancel(index, cfg.cancelRate)):
		op, status = opCancel, domain.OrderStatusCancelled
	case cfg.mode == modePlaceDeliver:
		op, status = opDeliver, domain.OrderStatusDelivered
	default:
		return
	}

	err = timed(ctx, cfg.timeout, col, op, func(ctx context.Context) error {
		_, err := target.UpdateOrderStatus(ctx, id, status)
		return err
	})
	if err != nil {
		outcome = classify(err)
	}
}

func timed(ctx context.Context, timeout time.Duration, col *collector, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	err := fn(ctx)
	col.record(op, time.Since(started), classify(err))
	return err
}

// classify сводит ошибку к короткой метке для отчёта: ok, HTTP-код, circuit_open, timeout или transport.
func classify(err error) string {
	if err == nil {
		return outcomeOK
	}
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) && remote.StatusCode > 0 {
		return strconv.Itoa(remote.StatusCode)
	}
	return "transport"
}

func shouldCancel(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	log.SetLevel(log.WarnLevel)
	client, err := orderapi.New(orderapi.Config{
		BaseURL: cfg.apiURL,
		Timeout: cfg.timeout,
		Retry:   orderapi.DefaultRetryConfig(),
	}, orderapi.WithLogger(log.WithField("component", "loadtest")))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, cfg, client)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}
