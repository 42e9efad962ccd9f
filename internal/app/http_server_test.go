package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/mockapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

// startTestMetricsServer запускает сервер и ждёт, пока /livez начнёт отвечать.
func startTestMetricsServer(t *testing.T, ctx context.Context, h *healthcheck.Handler) string {
	t.Helper()
	base := fmt.Sprintf("http://127.0.0.1:%d", findFreePort(t))
	addr := base[len("http://"):]

	srv := startMetricsServer(ctx, addr, quietLogger(), h)
	require.NotNil(t, srv)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	return base
}

func TestStartMetricsServer_HealthyCatalog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := healthcheck.NewHandler(version.GetVersion())
	h.RegisterChecker("catalog", healthcheck.NewPingChecker("catalog", mockapi.NewDemo(quietLogger()).Ping))
	base := startTestMetricsServer(t, ctx, h)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{path: "/metrics", wantCode: http.StatusOK, contains: "go_goroutines"},
		{path: "/healthz", wantCode: http.StatusOK, contains: `"catalog"`},
		{path: "/livez", wantCode: http.StatusOK, contains: "ok"},
		{path: "/readyz", wantCode: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			code, body := get(t, base+tc.path)
			assert.Equal(t, tc.wantCode, code)
			assert.Contains(t, body, tc.contains)
		})
	}
}

func TestStartMetricsServer_EmptyCatalogIsNotReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := healthcheck.NewHandler(version.GetVersion())
	h.RegisterChecker("catalog", healthcheck.NewPingChecker("catalog", mockapi.New(nil, nil, nil).Ping))
	base := startTestMetricsServer(t, ctx, h)

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "catalog is empty")

	code, _ = get(t, base+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = get(t, base+"/livez")
	assert.Equal(t, http.StatusOK, code)
}

func TestStartMetricsServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	base := startTestMetricsServer(t, ctx, healthcheck.NewHandler(version.GetVersion()))

	cancel()

	assert.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez")
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestShutdownHTTP(t *testing.T) {
	shutdownHTTP(nil, quietLogger())

	port := findFreePort(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe() }()

	url := fmt.Sprintf("http://127.0.0.1:%d/ping", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	shutdownHTTP(srv, quietLogger())

	select {
	case err := <-served:
		assert.True(t, errors.Is(err, http.ErrServerClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
