package config

import (
	"fmt"
	"os"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Runtime
	Environment string
	LogLevel    string

	// Market selection
	Exchange   string
	MarketType string

	// Settings store (Postgres in production)
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Settings store (SQLite in development)
	SQLitePath string

	// Cooldown persistence (optional)
	RedisAddr     string
	RedisPassword string

	// Observability
	MetricsAddr string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Exchange:   getEnv("EXCHANGE", "binance"),
		MarketType: getEnv("MARKET_TYPE", "futures"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "screener"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),

		SQLitePath: getEnv("SQLITE_PATH", "data/settings.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

// Development reports whether the app runs in development mode. Development
// uses the SQLite settings store and the log notifier fallback.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// DSN builds the Postgres connection string for pgxpool.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
