// Package config reads environment-driven settings, optionally from a
// .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level settings for the execution core.
type Config struct {
	// Mode is the initial trading mode: paper, semi-auto, or auto.
	Mode string

	// Binance
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestnet   bool
	GatewayRPS       float64

	// Persistence
	DBPath string

	// Risk limits file (YAML); empty means built-in defaults.
	RiskConfigPath string

	// Pending signals
	PendingTTL    time.Duration
	SweepInterval time.Duration

	// Resilience
	GatewayTimeout   time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Notifications
	TelegramToken  string
	TelegramChatID int64

	// Logging
	LogDir string
	Debug  bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Mode:             getEnv("TRADING_MODE", "paper"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		GatewayRPS:       getFloat("GATEWAY_RPS", 8),
		DBPath:           getEnv("DB_PATH", "./data/tradeflow.db"),
		RiskConfigPath:   os.Getenv("RISK_CONFIG_PATH"),
		PendingTTL:       getDuration("PENDING_TTL", time.Hour),
		SweepInterval:    getDuration("PENDING_SWEEP_INTERVAL", time.Minute),
		GatewayTimeout:   getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		RetryMaxAttempts: getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:    getDuration("RETRY_MAX_DELAY", 10*time.Second),
		BreakerThreshold: getInt("BREAKER_THRESHOLD", 5),
		BreakerCooldown:  getDuration("BREAKER_COOLDOWN", time.Minute),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getInt64("TELEGRAM_CHAT_ID", 0),
		LogDir:           getEnv("LOG_DIR", "logs"),
		Debug:            getEnv("DEBUG", "false") == "true",
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
