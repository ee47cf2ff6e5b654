package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

type Config struct {
	// Ledger
	LedgerDataDir string
	FlatCategory  string

	// Credential store
	UsersDBPath string

	// Logging
	LogLevel string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Quote providers
	MarketAPIURL   string
	MarketAPIKey   string
	CurrencyAPIURL string
	CurrencyAPIKey string
	LookupTimeout  time.Duration
	QuoteCacheTTL  time.Duration
	QuoteCacheSize int

	// Provider requests per minute, 0 for no limit
	QuoteRequestsPerMinute int

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Export
	ExportDir string

	// Sheets mirror worker
	EventRetention time.Duration
}

func Load() *Config {
	dataDir := getEnv("LEDGER_DATA_DIR", "./data")
	cfg := &Config{
		LedgerDataDir: dataDir,
		FlatCategory:  getEnv("FLAT_CATEGORY", "other"),
		UsersDBPath:   getEnv("USERS_DB_PATH", filepath.Join(dataDir, "users.db")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		MarketAPIURL:   getEnv("MARKET_API_URL", ""),
		MarketAPIKey:   getEnv("MARKET_API_KEY", ""),
		CurrencyAPIURL: getEnv("CURRENCY_API_URL", ""),
		CurrencyAPIKey: getEnv("CURRENCY_API_KEY", ""),
		LookupTimeout:  getEnvDuration("LOOKUP_TIMEOUT", 10*time.Second),
		QuoteCacheTTL:  getEnvDuration("QUOTE_CACHE_TTL", 5*time.Minute),
		QuoteCacheSize: getEnvInt("QUOTE_CACHE_SIZE", 256),

		QuoteRequestsPerMinute: getEnvInt("QUOTE_REQUESTS_PER_MINUTE", 5),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		ExportDir: getEnv("EXPORT_DIR", "."),

		EventRetention: getEnvDuration("EVENT_RETENTION", 30*24*time.Hour),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.LedgerDataDir == "" {
		errors = append(errors, "ledger data directory cannot be empty")
	}
	if name := strings.TrimSpace(c.FlatCategory); name == "" {
		errors = append(errors, "flat category name cannot be empty")
	} else if strings.ContainsAny(name, core.Delimiter+"\r\n") {
		errors = append(errors, fmt.Sprintf("invalid flat category '%s': must not contain a comma or line break", name))
	}
	if c.UsersDBPath == "" {
		errors = append(errors, "users database path cannot be empty")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for key, raw := range map[string]string{"MARKET_API_URL": c.MarketAPIURL, "CURRENCY_API_URL": c.CurrencyAPIURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http or https URL", key, raw))
		}
	}

	if c.LookupTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid lookup timeout %v: must be at least 1 second", c.LookupTimeout))
	} else if c.LookupTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid lookup timeout %v: must be at most 2 minutes", c.LookupTimeout))
	}
	if c.QuoteCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid quote cache ttl %v: must not be negative", c.QuoteCacheTTL))
	}
	if c.QuoteCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid quote cache size %d: must be at least 1", c.QuoteCacheSize))
	} else if c.QuoteCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid quote cache size %d: must be at most 10000", c.QuoteCacheSize))
	}

	if c.QuoteRequestsPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid quote request limit %d: must not be negative", c.QuoteRequestsPerMinute))
	}
	if c.EventRetention < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid event retention %v: must be at least 1 hour", c.EventRetention))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
