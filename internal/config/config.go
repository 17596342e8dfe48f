package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    string

	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	CartCacheTTL  time.Duration

	KafkaBrokers    []string
	CheckoutTopic   string
	CartEventsTopic string
	EventBuffer     int

	JWTSecret      string
	AllowedOrigins []string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	SessionCartTTL time.Duration
	SweepInterval  time.Duration
}

// Load reads configuration from the environment. Malformed numeric or
// duration values are reported rather than silently replaced by defaults.
func Load() (*Config, error) {
	var errs []string
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "cart-service"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getInt("DB_PORT", 5432, &errs),
		DBUser:     getEnv("DB_USER", "cart"),
		DBPassword: getEnv("DB_PASSWORD", "cart"),
		DBName:     getEnv("DB_NAME", "cartdb"),
		SQLitePath: getEnv("SQLITE_PATH", "cart.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CartCacheTTL:  getDuration("CART_CACHE_TTL", 15*time.Minute, &errs),

		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "")),
		CheckoutTopic:   getEnv("CHECKOUT_TOPIC", "checkout-outbox"),
		CartEventsTopic: getEnv("CART_EVENTS_TOPIC", "cart.events"),
		EventBuffer:     getInt("EVENT_BUFFER", 1024, &errs),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),

		SessionCartTTL: getDuration("SESSION_CART_TTL", 30*24*time.Hour, &errs),
		SweepInterval:  getDuration("SWEEP_INTERVAL", time.Hour, &errs),
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return defaultValue
	}
	return v
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
