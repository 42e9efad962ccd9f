package app

import (
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, StoreDriverFile, cfg.CartStore)
	assert.Equal(t, "cartItems", cfg.CartKey)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 50, cfg.OrderListLimit)
	assert.True(t, cfg.PostgresAutoMigrate)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_API_URL", "http://orders.internal:8080")
	t.Setenv("STOREFRONT_CART_STORE", " Redis ")
	t.Setenv("STOREFRONT_REDIS_DB", "3")
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STOREFRONT_REFRESH_INTERVAL", "5s")
	t.Setenv("STOREFRONT_POSTGRES_AUTO_MIGRATE", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://orders.internal:8080", cfg.APIURL)
	assert.Equal(t, StoreDriverRedis, cfg.CartStore)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval)
	assert.False(t, cfg.PostgresAutoMigrate)
	// не заданные переменные оставляют значения по умолчанию
	assert.Equal(t, 50, cfg.OrderListLimit)
	assert.Equal(t, "cartItems", cfg.CartKey)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Setenv("STOREFRONT_ORDER_LIST_LIMIT", "many")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory store", mutate: func(c *Config) { c.CartStore = StoreDriverMemory }},
		{name: "missing api url", mutate: func(c *Config) { c.APIURL = " " }, wantErr: "api url"},
		{name: "unknown store", mutate: func(c *Config) { c.CartStore = "sqlite" }, wantErr: "unsupported cart store"},
		{name: "file without path", mutate: func(c *Config) { c.CartFile = "" }, wantErr: "cart file"},
		{name: "redis without addr", mutate: func(c *Config) {
			c.CartStore = StoreDriverRedis
			c.RedisAddr = ""
		}, wantErr: "redis addr"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.CartStore = StoreDriverPostgres }, wantErr: "postgres dsn"},
		{name: "zero refresh", mutate: func(c *Config) { c.RefreshInterval = 0 }, wantErr: "refresh interval"},
		{name: "zero limit", mutate: func(c *Config) { c.OrderListLimit = 0 }, wantErr: "order list limit"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.wantErr), "error %q should mention %q", err, tc.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIURL = ""
	cfg.OrderListLimit = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api url")
	assert.Contains(t, err.Error(), "order list limit")
}

func TestConfig_Copy(t *testing.T) {
	original := DefaultConfig()
	copied := original
	copied.APIURL = "http://other"

	assert.Equal(t, "http://localhost:8000", original.APIURL)
}

func TestConfigureLogger(t *testing.T) {
	prev := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(prev) })

	require.NoError(t, ConfigureLogger("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	require.Error(t, ConfigureLogger("loud"))
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
