package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	SQLitePath    string
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	ConsumerGroup string
	ConsumerName  string
	HTTPAddr      string

	// Paper portfolio
	InitialCash   float64
	TradeNotional float64

	// Pipeline
	PipelineWorkers int
	DispatchTimeout time.Duration

	// Strategy seed file (YAML), applied when the strategy table is empty
	StrategySeedFile string

	// Alerts and admin
	WebhookURL         string
	AdminTOTPSecret    string
	BacktestRatePerSec float64
	BacktestBurst      int

	LogLevel string
}

// Load reads .env (if present) and then environment variables with sensible
// defaults. Variables already set in the environment win over .env.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	return &Config{
		SQLitePath:    getEnv("SQLITE_PATH", "data/trading.db"),
		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "tradecore"),
		ConsumerName:  getEnv("CONSUMER_NAME", "worker-1"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		InitialCash:   getEnvFloat("INITIAL_CASH", 10000),
		TradeNotional: getEnvFloat("TRADE_NOTIONAL", 100),

		PipelineWorkers: getEnvInt("PIPELINE_WORKERS", 4),
		DispatchTimeout: getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second),

		StrategySeedFile: getEnv("STRATEGY_SEED_FILE", "config/strategies.yaml"),

		WebhookURL:         getEnv("WEBHOOK_URL", ""),
		AdminTOTPSecret:    getEnv("ADMIN_TOTP_SECRET", ""),
		BacktestRatePerSec: getEnvFloat("BACKTEST_RATE_PER_SEC", 1),
		BacktestBurst:      getEnvInt("BACKTEST_BURST", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
