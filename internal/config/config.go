package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string
	DatabaseURL    string // Empty keeps units in memory
	RedisURL       string // Empty disables caching and wallet sign-in

	JWTSecret    string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration

	DefaultDecimals uint8
	MinLifetime     time.Duration
	MaxLifetime     time.Duration

	AutoSettle              bool
	SettlementSweepInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	decimals, err := strconv.ParseUint(getEnv("DEFAULT_DECIMALS", "6"), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_DECIMALS: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "production"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		TokenTTL:     getDurationEnv("TOKEN_TTL", 24*time.Hour),
		ChallengeTTL: getDurationEnv("CHALLENGE_TTL", 5*time.Minute),

		DefaultDecimals: uint8(decimals),
		MinLifetime:     getDurationEnv("MIN_LIFETIME", time.Minute),
		MaxLifetime:     getDurationEnv("MAX_LIFETIME", 90*24*time.Hour),

		AutoSettle:              getBoolEnv("AUTO_SETTLE", false),
		SettlementSweepInterval: getDurationEnv("SETTLEMENT_SWEEP_INTERVAL", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	if c.DefaultDecimals > 18 {
		return fmt.Errorf("DEFAULT_DECIMALS must not exceed 18, got %d", c.DefaultDecimals)
	}
	if c.MinLifetime <= 0 {
		return fmt.Errorf("MIN_LIFETIME must be positive")
	}
	if c.MaxLifetime < c.MinLifetime {
		return fmt.Errorf("MAX_LIFETIME (%s) must not be shorter than MIN_LIFETIME (%s)", c.MaxLifetime, c.MinLifetime)
	}
	if c.TokenTTL <= 0 || c.ChallengeTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL and CHALLENGE_TTL must be positive")
	}
	if c.AutoSettle && c.SettlementSweepInterval <= 0 {
		return fmt.Errorf("SETTLEMENT_SWEEP_INTERVAL must be positive when AUTO_SETTLE is enabled")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET of at least 32 bytes is required in production")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go durations ("90s", "2h") or whole seconds
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
