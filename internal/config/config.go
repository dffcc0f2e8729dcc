package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	DBPath           string
	DBBusyTimeout    time.Duration
	MaxConcurrent    int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	CollectInterval  time.Duration
	DefaultRateLimit int // calls per minute for sources without a configured limit
	TargetLimit      int // default "top N" target count when none are given
}

func Load() Config {
	return Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "stocks.db"),
		DBBusyTimeout:    getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second),
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 10),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),
		CollectInterval:  getEnvDuration("COLLECT_INTERVAL", time.Hour),
		DefaultRateLimit: getEnvInt("DEFAULT_RATE_LIMIT", 60),
		TargetLimit:      getEnvInt("TARGET_LIMIT", 50),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
