// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/emberctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/ember/internal/baseline"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Transports.
const (
	TransportLog      = "log"
	TransportTelegram = "telegram"
	TransportWebhook  = "webhook"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// State store
	StoreDriver    string // sqlite | postgres
	SQLitePath     string
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Check-in behaviour
	Timezone        *time.Location
	MinSamples      int
	GenerateTimeout time.Duration
	SendTimeout     time.Duration

	// Text generation (empty LLMModel = template only)
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string

	// Transport
	Transport        string // log | telegram | webhook
	TelegramBotToken string
	TelegramSecret   string // X-Telegram-Bot-Api-Secret-Token, optional
	SMSWebhookURL    string
	SMSWebhookToken  string

	// Maintenance
	CacheIdleAfter time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	tzName := envOr("EMBER_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("EMBER_TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		StoreDriver:    strings.ToLower(envOr("STORE_DRIVER", StoreSQLite)),
		SQLitePath:     envOr("SQLITE_PATH", "data/ember.db"),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		Timezone:        loc,
		MinSamples:      envInt("MIN_BASELINE_SAMPLES", baseline.DefaultMinSamples),
		GenerateTimeout: time.Duration(envInt("GENERATE_TIMEOUT_SECONDS", 8)) * time.Second,
		SendTimeout:     time.Duration(envInt("SEND_TIMEOUT_SECONDS", 10)) * time.Second,

		LLMProvider: envOr("LLM_PROVIDER", "openai"),
		LLMModel:    envOr("LLM_MODEL", ""),
		LLMAPIKey:   envOr("LLM_API_KEY", ""),
		LLMBaseURL:  envOr("LLM_BASE_URL", ""),

		Transport:        strings.ToLower(envOr("TRANSPORT", TransportLog)),
		TelegramBotToken: envOr("TELEGRAM_BOT_TOKEN", ""),
		TelegramSecret:   envOr("TELEGRAM_WEBHOOK_SECRET", ""),
		SMSWebhookURL:    envOr("SMS_WEBHOOK_URL", ""),
		SMSWebhookToken:  envOr("SMS_WEBHOOK_TOKEN", ""),

		CacheIdleAfter: time.Duration(envInt("CACHE_IDLE_MINUTES", 60)) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set when STORE_DRIVER=sqlite")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want sqlite or postgres)", c.StoreDriver)
	}

	switch c.Transport {
	case TransportLog:
	case TransportTelegram:
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN must be set when TRANSPORT=telegram")
		}
	case TransportWebhook:
		if c.SMSWebhookURL == "" {
			return fmt.Errorf("SMS_WEBHOOK_URL must be set when TRANSPORT=webhook")
		}
	default:
		return fmt.Errorf("unknown TRANSPORT %q (want log, telegram or webhook)", c.Transport)
	}

	if c.MinSamples < 2 {
		return fmt.Errorf("MIN_BASELINE_SAMPLES must be at least 2, got %d", c.MinSamples)
	}
	if c.GenerateTimeout <= 0 || c.SendTimeout <= 0 {
		return fmt.Errorf("GENERATE_TIMEOUT_SECONDS and SEND_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
