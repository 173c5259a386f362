package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// alphaVantagePlaceholder is the value shipped in sample env files
const alphaVantagePlaceholder = "your_api_key_here"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Monitor  MonitorConfig
	Sources  SourcesConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// KafkaConfig holds Kafka configuration. Publishing is disabled without
// brokers.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether events should be published
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// RedisConfig holds the quote cache configuration. Caching is disabled
// without an address.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

// Enabled reports whether the quote cache should be used
func (r RedisConfig) Enabled() bool { return r.Addr != "" && r.QuoteTTL > 0 }

// TelegramConfig holds alert notification settings
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Enabled reports whether alert digests should be sent
func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != 0 }

// MonitorConfig holds polling settings
type MonitorConfig struct {
	Symbols      []string
	Threshold    decimal.Decimal
	PollInterval time.Duration
	SymbolDelay  time.Duration
	RetryDelay   time.Duration
	FetchTimeout time.Duration
}

// SourcesConfig holds quote provider credentials
type SourcesConfig struct {
	AlphaVantageKey string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

var bindings = map[string]string{
	"server_port":            "SERVER_PORT",
	"server_host":            "SERVER_HOST",
	"database_url":           "DATABASE_URL",
	"db_host":                "DB_HOST",
	"db_port":                "DB_PORT",
	"db_user":                "DB_USER",
	"db_password":            "DB_PASSWORD",
	"db_name":                "DB_NAME",
	"db_sslmode":             "DB_SSLMODE",
	"db_timezone":            "DB_TIMEZONE",
	"kafka_brokers":          "KAFKA_BROKERS",
	"kafka_topic":            "KAFKA_TOPIC",
	"redis_addr":             "REDIS_ADDR",
	"redis_password":         "REDIS_PASSWORD",
	"redis_db":               "REDIS_DB",
	"quote_cache_ttl":        "QUOTE_CACHE_TTL",
	"telegram_bot_token":     "TELEGRAM_BOT_TOKEN",
	"telegram_chat_id":       "TELEGRAM_CHAT_ID",
	"stock_symbols":          "STOCK_SYMBOLS",
	"price_change_threshold": "PRICE_CHANGE_THRESHOLD",
	"poll_interval":          "POLL_INTERVAL",
	"symbol_delay":           "SYMBOL_DELAY",
	"retry_delay":            "RETRY_DELAY",
	"fetch_timeout":          "FETCH_TIMEOUT",
	"alpha_vantage_api_key":  "ALPHA_VANTAGE_API_KEY",
	"log_level":              "LOG_LEVEL",
	"log_format":             "LOG_FORMAT",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("server_port", "8080")
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "stockmonitor")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("kafka_topic", "stock-monitor-events")
	v.SetDefault("quote_cache_ttl", "30s")
	v.SetDefault("price_change_threshold", "5.0")
	v.SetDefault("poll_interval", "5m")
	v.SetDefault("symbol_delay", "1s")
	v.SetDefault("retry_delay", "1m")
	v.SetDefault("fetch_timeout", "10s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	return v
}

// Load reads configuration from the environment and, when configFile is
// set, from a dotenv-style file. Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	threshold, err := decimal.NewFromString(strings.TrimSpace(v.GetString("price_change_threshold")))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_CHANGE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server_port"),
			Host: v.GetString("server_host"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database_url"),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			TimeZone: v.GetString("db_timezone"),
		},
		Kafka: KafkaConfig{
			Brokers: SplitList(v.GetString("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Telegram: TelegramConfig{
			Token:  v.GetString("telegram_bot_token"),
			ChatID: v.GetInt64("telegram_chat_id"),
		},
		Monitor: MonitorConfig{
			Symbols:   SplitList(v.GetString("stock_symbols")),
			Threshold: threshold,
		},
		Sources: SourcesConfig{
			AlphaVantageKey: alphaVantageKey(v.GetString("alpha_vantage_api_key")),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}

	durations := map[string]*time.Duration{
		"quote_cache_ttl": &cfg.Redis.QuoteTTL,
		"poll_interval":   &cfg.Monitor.PollInterval,
		"symbol_delay":    &cfg.Monitor.SymbolDelay,
		"retry_delay":     &cfg.Monitor.RetryDelay,
		"fetch_timeout":   &cfg.Monitor.FetchTimeout,
	}
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", bindings[key], err)
		}
		*dst = d
	}

	return cfg, nil
}

// Validate checks settings the monitor cannot run without
func (c *Config) Validate() error {
	if len(c.Monitor.Symbols) == 0 {
		return fmt.Errorf("no stock symbols configured, set STOCK_SYMBOLS")
	}
	if !c.Monitor.Threshold.IsPositive() {
		return fmt.Errorf("PRICE_CHANGE_THRESHOLD must be positive, got %s", c.Monitor.Threshold)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Monitor.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.Monitor.FetchTimeout)
	}
	if c.Monitor.SymbolDelay < 0 || c.Monitor.RetryDelay < 0 {
		return fmt.Errorf("SYMBOL_DELAY and RETRY_DELAY must not be negative")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}

	query := url.Values{}
	query.Set("sslmode", d.SSLMode)
	if d.TimeZone != "" {
		query.Set("timezone", d.TimeZone)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// SplitList splits a comma separated list, dropping blank entries
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func alphaVantageKey(key string) string {
	key = strings.TrimSpace(key)
	if key == alphaVantagePlaceholder {
		return ""
	}
	return key
}
