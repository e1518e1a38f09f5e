package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Benefits BenefitsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds the key used to verify access tokens issued by the HRIS
// auth service.
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// BenefitsConfig tunes the monthly aggregation engine.
type BenefitsConfig struct {
	CapHigh          decimal.Decimal
	CapLow           decimal.Decimal
	CacheRetention   int
	CacheDebounce    time.Duration
	RecomputeTimeout time.Duration
	RetryInterval    time.Duration
	ComputeWorkers   int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "25"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.ParseInt(getEnv("DB_MIN_CONNS", "5"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-hris"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	benefits, err := loadBenefits()
	if err != nil {
		return nil, err
	}
	config.Benefits = benefits

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadBenefits() (BenefitsConfig, error) {
	var (
		b   BenefitsConfig
		err error
	)

	if b.CapHigh, err = decimal.NewFromString(getEnv("CAP_HIGH", "46.48")); err != nil {
		return b, fmt.Errorf("invalid CAP_HIGH: %w", err)
	}
	if b.CapLow, err = decimal.NewFromString(getEnv("CAP_LOW", "30.98")); err != nil {
		return b, fmt.Errorf("invalid CAP_LOW: %w", err)
	}
	if b.CacheRetention, err = strconv.Atoi(getEnv("CACHE_RETENTION_MONTHS", "3")); err != nil {
		return b, fmt.Errorf("invalid CACHE_RETENTION_MONTHS: %w", err)
	}
	if b.CacheDebounce, err = time.ParseDuration(getEnv("CACHE_DEBOUNCE", "2s")); err != nil {
		return b, fmt.Errorf("invalid CACHE_DEBOUNCE: %w", err)
	}
	if b.RecomputeTimeout, err = time.ParseDuration(getEnv("RECOMPUTE_TIMEOUT", "2m")); err != nil {
		return b, fmt.Errorf("invalid RECOMPUTE_TIMEOUT: %w", err)
	}
	if b.RetryInterval, err = time.ParseDuration(getEnv("RECOMPUTE_RETRY_INTERVAL", "1m")); err != nil {
		return b, fmt.Errorf("invalid RECOMPUTE_RETRY_INTERVAL: %w", err)
	}
	if b.ComputeWorkers, err = strconv.Atoi(getEnv("COMPUTE_WORKERS", "8")); err != nil {
		return b, fmt.Errorf("invalid COMPUTE_WORKERS: %w", err)
	}
	return b, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	// the notification listener holds one connection for itself
	if c.Database.MaxConns < 2 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MAX_CONNS must be at least 2 and not below DB_MIN_CONNS")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if !c.Benefits.CapLow.IsPositive() || !c.Benefits.CapLow.LessThan(c.Benefits.CapHigh) {
		return fmt.Errorf("CAP_LOW must be positive and below CAP_HIGH")
	}
	if c.Benefits.CacheRetention < 1 {
		return fmt.Errorf("CACHE_RETENTION_MONTHS must be at least 1")
	}
	if c.Benefits.CacheDebounce <= 0 {
		return fmt.Errorf("CACHE_DEBOUNCE must be positive")
	}
	if c.Benefits.ComputeWorkers < 1 {
		return fmt.Errorf("COMPUTE_WORKERS must be at least 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
