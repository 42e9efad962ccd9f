package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

func TestRunMockAPI_ServesAndShutsDown(t *testing.T) {
	httpPort := findFreePort(t)
	grpcPort := findFreePort(t)

	cfg := DefaultConfig()
	cfg.MockHTTPAddr = fmt.Sprintf("127.0.0.1:%d", httpPort)
	cfg.MockGRPCAddr = fmt.Sprintf("127.0.0.1:%d", grpcPort)
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunMockAPI(ctx, cfg) }()

	productsURL := fmt.Sprintf("http://127.0.0.1:%d/products", httpPort)
	var body []byte
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(productsURL)
		if err == nil {
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mock api did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(string(body), "Wireless Headphones") {
		t.Fatalf("unexpected catalog response: %s", body)
	}

	conn, err := grpc.NewClient(cfg.MockGRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial grpc: %v", err)
	}
	defer conn.Close()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer checkCancel()
	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: mockServiceName})
	if err != nil {
		t.Fatalf("grpc health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("RunMockAPI did not stop after cancel")
	}
}

func TestRunMockAPI_ListenError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MockGRPCAddr = "256.0.0.1:bad"
	cfg.MockHTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	if err := RunMockAPI(context.Background(), cfg); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.CartStore = StoreDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true
	cfg.CartKey = fmt.Sprintf("app-it-%d", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deps, err := initRuntimeDependencies(ctx, cfg, log.WithField("test", "postgres"))
	if err != nil {
		t.Skipf("postgres is not available for integration test: %v", err)
	}
	defer deps.close()

	if err := deps.ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	cart := domain.Cart{Items: []domain.CartItem{sampleCartItem()}}
	if err := deps.cartStore.Save(ctx, cart); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := deps.cartStore.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Equal(cart) {
		t.Fatalf("expected %+v, got %+v", cart, loaded)
	}
}

func TestCloseKafka_NonNil(t *testing.T) {
	producer, err := kafka.NewProducer([]string{"localhost:9092"}, nil)
	if err != nil {
		t.Skipf("kafka is not available for integration test: %v", err)
	}
	closeKafka(producer, log.WithField("test", "kafka-close"))
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
}
