package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	BackendMemory  = "memory"
	BackendSurreal = "surreal"
	BackendRedis   = "redis"
)

// Streak policies
const (
	StreakPerCompletion = "per_completion"
	StreakNone          = "none"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Chat     ChatConfig
	Sync     SyncConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// StoreConfig selects the remote document store
type StoreConfig struct {
	Backend string
	// AppID scopes every collection. Slashes are not allowed in names so they
	// are replaced with underscores.
	AppID string
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	User      string
	Password  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// SessionConfig holds sign-in settings
type SessionConfig struct {
	// InitialAuthToken, when set, is used for token sign-in
	InitialAuthToken string
	PublicKeyPath    string
	PrivateKeyPath   string
	Issuer           string
	// AnonymousID pins the anonymous identity across restarts
	AnonymousID string
}

// ChatConfig holds chat assistant settings
type ChatConfig struct {
	Endpoint      string
	Model         string
	APIKey        string
	HistoryWindow int
	Timeout       time.Duration
	RateLimit     int
	RateBurst     int
}

// SyncConfig holds sync engine and dispatcher settings
type SyncConfig struct {
	StreakPolicy      string
	SimulatorInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", BackendMemory),
			AppID:   SanitizeAppID(getEnv("APP_ID", "default-app-id")),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "8000"),
			Namespace: getEnv("DB_NAMESPACE", "learnsync"),
			User:      getEnv("DB_USER", "root"),
			Password:  getEnv("DB_PASSWORD", "root"),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getIntEnv("REDIS_PORT", 6379),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getIntEnv("REDIS_DB", 0),
			PoolSize:    getIntEnv("REDIS_POOL_SIZE", 10),
			DialTimeout: getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			InitialAuthToken: getEnv("INITIAL_AUTH_TOKEN", ""),
			PublicKeyPath:    getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			PrivateKeyPath:   getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			Issuer:           getEnv("JWT_ISSUER", "learnsync.gippro.dev"),
			AnonymousID:      getEnv("ANONYMOUS_ID", ""),
		},
		Chat: ChatConfig{
			Endpoint:      getEnv("CHAT_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
			Model:         getEnv("CHAT_MODEL", "gemini-2.5-flash-preview-09-2025"),
			APIKey:        getEnv("CHAT_API_KEY", ""),
			HistoryWindow: getIntEnv("CHAT_HISTORY_WINDOW", 6),
			Timeout:       getDurationEnv("CHAT_TIMEOUT", 30*time.Second),
			RateLimit:     getIntEnv("CHAT_RATE_LIMIT", 10),
			RateBurst:     getIntEnv("CHAT_RATE_BURST", 5),
		},
		Sync: SyncConfig{
			StreakPolicy:      getEnv("STREAK_POLICY", StreakPerCompletion),
			SimulatorInterval: getDurationEnv("SIMULATOR_INTERVAL", 50*time.Millisecond),
		},
	}, nil
}

// SanitizeAppID makes an app id safe to use as a collection scope
func SanitizeAppID(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Store validation
	if c.Store.AppID == "" {
		errs = append(errs, errors.New("APP_ID is required"))
	}
	switch c.Store.Backend {
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_BACKEND 'memory' is not allowed in production"))
		}
	case BackendSurreal:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.Database.Port == "" {
			errs = append(errs, errors.New("DB_PORT is required"))
		}
		if c.Database.Namespace == "" {
			errs = append(errs, errors.New("DB_NAMESPACE is required"))
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
		if c.Redis.Port <= 0 {
			errs = append(errs, errors.New("REDIS_PORT must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be 'memory', 'surreal', or 'redis', got '%s'", c.Store.Backend))
	}

	// Session validation
	if c.Session.InitialAuthToken != "" && c.Session.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required when INITIAL_AUTH_TOKEN is set"))
	}

	// Chat validation
	if c.Chat.HistoryWindow <= 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_WINDOW must be positive"))
	}
	if c.Chat.RateLimit <= 0 || c.Chat.RateBurst <= 0 {
		errs = append(errs, errors.New("CHAT_RATE_LIMIT and CHAT_RATE_BURST must be positive"))
	}

	// Sync validation
	if c.Sync.StreakPolicy != StreakPerCompletion && c.Sync.StreakPolicy != StreakNone {
		errs = append(errs, fmt.Errorf("STREAK_POLICY must be '%s' or '%s', got '%s'", StreakPerCompletion, StreakNone, c.Sync.StreakPolicy))
	}
	if c.Sync.SimulatorInterval <= 0 {
		errs = append(errs, errors.New("SIMULATOR_INTERVAL must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
