package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := readConfig()
	require.NoError(t, err)

	defaults := app.DefaultConfig()
	assert.Equal(t, defaults.MockHTTPAddr, cfg.MockHTTPAddr)
	assert.Equal(t, defaults.MockGRPCAddr, cfg.MockGRPCAddr)
	assert.Equal(t, defaults.MetricsAddr, cfg.MetricsAddr)
}

func TestReadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_MOCK_HTTP_ADDR", "127.0.0.1:18000")
	t.Setenv("STOREFRONT_MOCK_GRPC_ADDR", "127.0.0.1:15051")
	t.Setenv("STOREFRONT_LOG_LEVEL", "debug")
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	cfg, err := readConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:18000", cfg.MockHTTPAddr)
	assert.Equal(t, "127.0.0.1:15051", cfg.MockGRPCAddr)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestReadConfig_InvalidEnv(t *testing.T) {
	t.Setenv("STOREFRONT_API_TIMEOUT", "soon")

	_, err := readConfig()
	require.Error(t, err)
}
