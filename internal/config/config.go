package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int
	DevMode        bool
	LogLevel       string
	DatabasePath   string
	ThresholdsPath string

	// Price resolution
	ProviderOrder      []string      // tried in order until one succeeds
	ProviderTimeout    time.Duration // per provider call
	FinnhubAPIKey      string
	RefreshSchedule    string // cron spec for the background price refresh
	RefreshConcurrency int    // bounded worker pool size for batch refresh
	ProviderRatePerMin int    // per-provider rate limit (requests/minute)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabasePath:       getEnv("DATABASE_PATH", "./data/folio.db"),
		ThresholdsPath:     getEnv("THRESHOLDS_PATH", ""),
		ProviderOrder:      getEnvAsList("PRICE_PROVIDERS", []string{"yahoo", "finnhub"}),
		ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		FinnhubAPIKey:      getEnv("FINNHUB_API_KEY", ""),
		RefreshSchedule:    getEnv("PRICE_REFRESH_SCHEDULE", "0 0 * * * *"), // hourly
		RefreshConcurrency: getEnvAsInt("PRICE_REFRESH_CONCURRENCY", 4),
		ProviderRatePerMin: getEnvAsInt("PROVIDER_RATE_PER_MIN", 60),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
// Configuration errors are fatal at startup, never mid-computation.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if len(c.ProviderOrder) == 0 {
		return fmt.Errorf("PRICE_PROVIDERS must name at least one provider")
	}
	for _, p := range c.ProviderOrder {
		switch p {
		case "yahoo", "finnhub":
		default:
			return fmt.Errorf("unknown price provider %q", p)
		}
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.RefreshConcurrency < 1 {
		return fmt.Errorf("PRICE_REFRESH_CONCURRENCY must be at least 1")
	}
	if c.ProviderRatePerMin < 1 {
		return fmt.Errorf("PROVIDER_RATE_PER_MIN must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
