package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	HTTPPort              string
	AdminAPIKey           string
	CoinGeckoURL          string
	CoinGeckoDelay        time.Duration
	CoinGeckoRetryMax     int
	CoinGeckoMinInterval  time.Duration
	SyncMinInterval       time.Duration
	SyncWorkerInterval    time.Duration
	ReportWorkerInterval  time.Duration
	StaleThreshold        time.Duration
	PriceTTL              time.Duration
	NetworkTimeout        time.Duration
	QuoteCacheTTL         time.Duration
	SystemAccountID       string
	GoogleSheetsID        string
	GoogleCredentialsJSON string
	LogLevel              string
	LogFormat             string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           envOrDefaultWarn("ADMIN_API_KEY", ""),
		CoinGeckoURL:          envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoDelay:        envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax:     envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		CoinGeckoMinInterval:  envOrDefaultDuration("COINGECKO_MIN_INTERVAL", 2*time.Second),
		SyncMinInterval:       envOrDefaultDuration("SYNC_MIN_INTERVAL", 30*time.Second),
		SyncWorkerInterval:    envOrDefaultDuration("SYNC_WORKER_INTERVAL", 5*time.Minute),
		ReportWorkerInterval:  envOrDefaultDuration("REPORT_WORKER_INTERVAL", 15*time.Minute),
		StaleThreshold:        envOrDefaultDuration("STALE_THRESHOLD", 300*time.Second),
		PriceTTL:              envOrDefaultDuration("PRICE_TTL", 300*time.Second),
		NetworkTimeout:        envOrDefaultDuration("NETWORK_TIMEOUT", 10*time.Second),
		QuoteCacheTTL:         envOrDefaultDuration("QUOTE_CACHE_TTL", 30*time.Second),
		SystemAccountID:       envOrDefault("SYSTEM_ACCOUNT_ID", "system"),
		GoogleSheetsID:        envOrDefault("GOOGLE_SHEETS_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		LogLevel:              logLevel(),
		LogFormat:             logFormat(),
	}
}

// NewLoggerFromEnv builds the logger from LOG_LEVEL and LOG_FORMAT alone, so it can be
// installed before Load reports invalid values.
func NewLoggerFromEnv(w io.Writer) *slog.Logger {
	return Config{LogLevel: logLevel(), LogFormat: logFormat()}.NewLogger(w)
}

func logLevel() string  { return envOrDefault("LOG_LEVEL", "info") }
func logFormat() string { return envOrDefault("LOG_FORMAT", "text") }

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != ""
}

// NewLogger builds a slog.Logger from LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
