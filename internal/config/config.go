package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the cloud document server configuration
type Config struct {
	// Server configuration
	Port       string
	NotifyPort string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Bearer token configuration
	AuthSecret string
	TokenTTL   time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// ClientConfig holds the configuration of an offline-first client
type ClientConfig struct {
	// Cloud endpoints
	ServerURL string
	NotifyURL string
	Token     string

	// Identity
	UserID   string
	UserName string

	// Local store
	StorePath  string
	StoreQuota int64

	// Sync behaviour
	Debounce       time.Duration
	Policy         string // legacy or record
	RoleFailClosed bool
	RequestTimeout time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// LoadEnvFile loads a .env file into the process environment. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load environment file %s: %w", path, err)
	}
	return nil
}

// Load loads the server configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		NotifyPort:        getEnv("NOTIFY_PORT", "3001"),
		DBType:            getEnv("DB_TYPE", "sqlite"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		AuthSecret:        getEnv("AUTH_SECRET", ""),
		TokenTTL:          getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", ""),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBType != "sqlite" && cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}
	if cfg.Port == cfg.NotifyPort {
		return nil, fmt.Errorf("PORT and NOTIFY_PORT must differ")
	}

	return cfg, nil
}

// LoadClient loads the client configuration from environment variables
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		ServerURL:      strings.TrimSuffix(getEnv("CRM_SERVER_URL", "http://localhost:3000"), "/"),
		NotifyURL:      strings.TrimSuffix(getEnv("CRM_NOTIFY_URL", "ws://localhost:3001"), "/"),
		Token:          getEnv("CRM_TOKEN", ""),
		UserID:         getEnv("CRM_USER_ID", ""),
		UserName:       getEnv("CRM_USER_NAME", ""),
		StorePath:      getEnv("CRM_STORE_PATH", "crmsync.db"),
		StoreQuota:     int64(getEnvAsInt("CRM_STORE_QUOTA", 5*1024*1024)),
		Debounce:       getEnvAsDuration("SYNC_DEBOUNCE", 2*time.Second),
		Policy:         getEnv("SYNC_POLICY", "legacy"),
		RoleFailClosed: getEnvAsBool("ROLE_FAIL_CLOSED", false),
		RequestTimeout: getEnvAsDuration("CRM_REQUEST_TIMEOUT", 10*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}

	if cfg.UserID == "" {
		return nil, fmt.Errorf("CRM_USER_ID is required")
	}
	switch cfg.Policy {
	case "legacy", "record":
	default:
		return nil, fmt.Errorf("SYNC_POLICY must be legacy or record, got %q", cfg.Policy)
	}
	if cfg.Debounce <= 0 {
		return nil, fmt.Errorf("SYNC_DEBOUNCE must be positive")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
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

// getEnvAsBool gets an environment variable as a boolean or returns a default value
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

// getEnvAsDuration gets an environment variable as a time.Duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
