package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	// CORSOrigins are the dashboard hosts allowed to call the API from a browser.
	CORSOrigins []string

	// TokenSealKey seals marketplace tokens at rest. Empty stores them as-is.
	TokenSealKey string

	DB     DatabaseConfig
	Redis  RedisConfig
	Meli   MeliConfig
	Sync   SyncConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MeliConfig contains the marketplace application credentials.
type MeliConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// SyncConfig contains the knobs of the stock/price sync pipeline.
type SyncConfig struct {
	BatchSize         int
	SoftDeadline      time.Duration
	UpdateDelay       time.Duration
	MaxAttempts       int
	BaseDelay         time.Duration
	MinPrice          decimal.Decimal
	MaxQuantity       int
	TenantConcurrency int
	PageMaxAttempts   int
	OptimisticLock    bool
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	SyncInterval     time.Duration
	PageWorkers      int
	QueuePollTimeout time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	// Missing .env is fine: production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.TokenSealKey = getEnv("TOKEN_SEAL_KEY", "")
	cfg.CORSOrigins = strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "localhost:3000,127.0.0.1:3000"), ",")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Marketplace
	cfg.Meli = MeliConfig{
		BaseURL:      getEnv("MELI_BASE_URL", "https://api.mercadolibre.com"),
		ClientID:     getEnv("MELI_CLIENT_ID", ""),
		ClientSecret: getEnv("MELI_CLIENT_SECRET", ""),
	}

	// Sync pipeline
	cfg.Sync = SyncConfig{
		BatchSize:         getEnvInt("SYNC_BATCH_SIZE", 100),
		MaxAttempts:       getEnvInt("SYNC_MAX_ATTEMPTS", 5),
		MaxQuantity:       getEnvInt("SYNC_MAX_QUANTITY", 99999),
		TenantConcurrency: getEnvInt("SYNC_TENANT_CONCURRENCY", 4),
		PageMaxAttempts:   getEnvInt("SYNC_PAGE_MAX_ATTEMPTS", 3),
		OptimisticLock:    getEnvBool("SYNC_OPTIMISTIC_LOCK", false),
	}

	var err error
	if cfg.Sync.MinPrice, err = decimal.NewFromString(getEnv("SYNC_MIN_PRICE", "0")); err != nil {
		return nil, fmt.Errorf("invalid SYNC_MIN_PRICE: %w", err)
	}
	if cfg.Meli.Timeout, err = parseDurationEnv("MELI_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid MELI_TIMEOUT: %w", err)
	}
	if cfg.Sync.SoftDeadline, err = parseDurationEnv("SYNC_SOFT_DEADLINE", "4m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_SOFT_DEADLINE: %w", err)
	}
	if cfg.Sync.UpdateDelay, err = parseDurationEnv("SYNC_UPDATE_DELAY", "250ms"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_UPDATE_DELAY: %w", err)
	}
	if cfg.Sync.BaseDelay, err = parseDurationEnv("SYNC_BASE_DELAY", "1s"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_BASE_DELAY: %w", err)
	}

	// Workers
	cfg.Worker.PageWorkers = getEnvInt("PAGE_WORKERS", 2)
	if cfg.Worker.SyncInterval, err = parseDurationEnv("SYNC_INTERVAL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	if cfg.Worker.QueuePollTimeout, err = parseDurationEnv("QUEUE_POLL_TIMEOUT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid QUEUE_POLL_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for authentication")
	}
	if cfg.Meli.ClientID == "" || cfg.Meli.ClientSecret == "" {
		return errors.New("marketplace app credentials incomplete: ensure MELI_CLIENT_ID and MELI_CLIENT_SECRET are set")
	}
	if cfg.Sync.BatchSize < 1 || cfg.Sync.BatchSize > 200 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be between 1 and 200, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.MaxAttempts < 1 {
		return errors.New("SYNC_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Sync.MinPrice.IsNegative() {
		return errors.New("SYNC_MIN_PRICE must be >= 0")
	}
	if cfg.Sync.MaxQuantity < 1 {
		return errors.New("SYNC_MAX_QUANTITY must be >= 1")
	}
	if cfg.Worker.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
