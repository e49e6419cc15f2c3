// Package config loads process environment settings and the declarative
// strategy document. Both are immutable after load; any validation failure is
// fatal at startup.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Env holds environment-driven process settings.
type Env struct {
	// HTTP monitor listen port.
	Port string

	// Feed selection: "mock" or "binance".
	FeedSource string
	// Binance endpoints for the live feed and the kline backfill.
	BinanceWSURL   string
	BinanceRESTURL string

	// Strategy document path.
	StrategyPath string

	// Database path for the audit sink and candle store.
	DBPath string

	// Paper-fill simulation knobs.
	PaperFeeRate     float64 // decimal, e.g. 0.0004 = 4 bps
	PaperSlippageBps float64

	// Warm buffers from stored candles before processing the feed.
	WarmupBars int

	LogLevel string
}

// LoadEnv reads environment variables (optionally via .env) into Env.
func LoadEnv() (*Env, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Env{
		Port:             getEnv("PORT", "8080"),
		FeedSource:       getEnv("FEED_SOURCE", "mock"),
		BinanceWSURL:     getEnv("BINANCE_WS_URL", "wss://stream.binance.com:9443/ws"),
		BinanceRESTURL:   getEnv("BINANCE_REST_URL", "https://api.binance.com"),
		StrategyPath:     getEnv("STRATEGY_PATH", "./strategy.yaml"),
		DBPath:           getEnv("DB_PATH", "./data/trading.db"),
		PaperFeeRate:     getEnvFloat("PAPER_FEE_RATE", 0.0004),
		PaperSlippageBps: getEnvFloat("PAPER_SLIPPAGE_BPS", 2),
		WarmupBars:       getEnvInt("WARMUP_BARS", 0),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
