package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOCK_SYMBOLS", " aapl, MSFT ,,nvda ")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "")
	t.Setenv("PRICE_CHANGE_THRESHOLD", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"aapl", "MSFT", "nvda"}, cfg.Monitor.Symbols)
	assert.Equal(t, "5", cfg.Monitor.Threshold.String())
	assert.Equal(t, 5*time.Minute, cfg.Monitor.PollInterval)
	assert.Equal(t, time.Second, cfg.Monitor.SymbolDelay)
	assert.Equal(t, time.Minute, cfg.Monitor.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Monitor.FetchTimeout)
	assert.Empty(t, cfg.Sources.AlphaVantageKey)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STOCK_SYMBOLS", "TSLA")
	t.Setenv("PRICE_CHANGE_THRESHOLD", "2.5")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("QUOTE_CACHE_TTL", "15s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "2.5", cfg.Monitor.Threshold.String())
	assert.Equal(t, 30*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 15*time.Second, cfg.Redis.QuoteTTL)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, int64(-1001234), cfg.Telegram.ChatID)
}

func TestLoadPlaceholderAPIKey(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "your_api_key_here")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Sources.AlphaVantageKey)

	t.Setenv("ALPHA_VANTAGE_API_KEY", "real-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "real-key", cfg.Sources.AlphaVantageKey)
}

func TestLoadInvalidValues(t *testing.T) {
	t.Run("threshold", func(t *testing.T) {
		t.Setenv("PRICE_CHANGE_THRESHOLD", "five")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL", "soon")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POLL_INTERVAL")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, err)
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("STOCK_SYMBOLS", "")
	t.Setenv("FETCH_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "monitor.env")
	content := "STOCK_SYMBOLS=AMD,INTC\nFETCH_TIMEOUT=3s\nDB_NAME=fromfile\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DB_NAME", "fromenv")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD", "INTC"}, cfg.Monitor.Symbols)
	assert.Equal(t, 3*time.Second, cfg.Monitor.FetchTimeout)
	assert.Equal(t, "fromenv", cfg.Database.DBName)
}

func TestValidate(t *testing.T) {
	t.Setenv("STOCK_SYMBOLS", "")
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STOCK_SYMBOLS")

	cfg.Monitor.Symbols = []string{"AAPL"}
	require.NoError(t, cfg.Validate())

	cfg.Monitor.FetchTimeout = 0
	require.Error(t, cfg.Validate())
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "monitor",
		Password: "p@ss word",
		DBName:   "stocks",
		SSLMode:  "disable",
		TimeZone: "America/New_York",
	}
	assert.Equal(t,
		"postgres://monitor:p%40ss%20word@db:5432/stocks?sslmode=disable&timezone=America%2FNew_York",
		db.ConnectionString())

	db.URL = "postgres://override/db"
	assert.Equal(t, "postgres://override/db", db.ConnectionString())
}
