package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database configuration
	DBPath          string
	DBEncryptionKey string
	DBBusyTimeout   time.Duration
	DBMaxOpenConns  int

	// Password hashing
	BcryptCost int

	// Audit configuration
	AuditLogPath   string
	AuditAsyncMode bool

	// Rate limiting
	RateLimitRPS   int
	RateLimitBurst int

	// HTTP adapter
	HTTPAddr      string
	SessionSecret string

	// Application settings
	Environment string
	LogLevel    string
	LogJSON     bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (not required in production)
	_ = godotenv.Load()

	config := &Config{
		DBPath:          getEnv("DB_PATH", "./data/univ_erp.db"),
		DBEncryptionKey: getEnv("DB_ENCRYPTION_KEY", ""),
		DBBusyTimeout:   time.Duration(getEnvAsInt("DB_BUSY_TIMEOUT_MS", 5000)) * time.Millisecond,
		DBMaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		BcryptCost:      getEnvAsInt("BCRYPT_COST", 10),
		AuditLogPath:    getEnv("AUDIT_LOG_PATH", "./logs/audit.log"),
		AuditAsyncMode:  getEnvAsBool("AUDIT_ASYNC_MODE", true),
		RateLimitRPS:    getEnvAsInt("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		Environment:     getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogJSON:         getEnvAsBool("LOG_JSON", false),
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DBEncryptionKey == "" {
		return fmt.Errorf("DB_ENCRYPTION_KEY is required")
	}

	if len(c.DBEncryptionKey) < 32 {
		return fmt.Errorf("DB_ENCRYPTION_KEY must be at least 32 characters")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	if c.Environment == "production" && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
