package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/service"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/redis"
)

type Config struct {
	APIURL string // Required: base URL of the dashboard API

	StorageDriver string // Optional: sqlite, redis or memory (default: sqlite)
	DatabaseFile  string // Optional: SQLite file for the sqlite driver (default: ./dashcore.db)
	RedisAddr     string // Optional: redis address for the redis driver (default: localhost:6379)
	RedisPassword string // Optional: redis password
	RedisDB       int    // Optional: redis database number (default: 0)
	RedisPrefix   string // Optional: key prefix for the redis driver (default: dashcore:)
	StorageKey    string // Optional: when set, the stored credential and profile are encrypted with a key derived from it

	Username string // Optional: sign in with these credentials when nothing is stored
	Password string

	NotificationInterval time.Duration // Optional: background sync interval (default: 60s)
	NotificationPageSize int           // Optional: notifications fetched per sync (default: 50)
	NotificationSyncRPS  float64       // Optional: on-demand syncs per second (default: 0.2)
	SessionMaxAge        time.Duration // Optional: expire stored credentials older than this (default: 0, disabled)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // Status server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	HTTPTimeout         time.Duration // Timeout for API requests (default: 10s)
}

func LoadConfig() Config {
	return Config{
		APIURL: strings.TrimSuffix(os.Getenv("DASH_API_URL"), "/"),

		StorageDriver: strings.ToLower(getEnvOrDefault("DASH_STORAGE_DRIVER", "sqlite")),
		DatabaseFile:  getEnvOrDefault("DASH_DATABASE_FILE", "dashcore.db"),
		RedisAddr:     getEnvOrDefault("DASH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("DASH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("DASH_REDIS_DB", 0),
		RedisPrefix:   getEnvOrDefault("DASH_REDIS_PREFIX", redis.DefaultPrefix),
		StorageKey:    os.Getenv("DASH_STORAGE_KEY"),

		Username: os.Getenv("DASH_USERNAME"),
		Password: os.Getenv("DASH_PASSWORD"),

		NotificationInterval: getEnvDurationOrDefault("NOTIFICATION_INTERVAL", service.DefaultNotificationInterval),
		NotificationPageSize: getEnvIntOrDefault("NOTIFICATION_PAGE_SIZE", service.DefaultNotificationPageSize),
		NotificationSyncRPS:  getEnvFloatOrDefault("NOTIFICATION_SYNC_RPS", 0.2),
		SessionMaxAge:        getEnvDurationOrDefault("SESSION_MAX_AGE", 0),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HTTPTimeout:         getEnvDurationOrDefault("HTTP_TIMEOUT", 10*time.Second),
	}
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error

	if c.APIURL == "" {
		errs = append(errs, errors.New("DASH_API_URL is required"))
	}
	switch c.StorageDriver {
	case "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown DASH_STORAGE_DRIVER %q", c.StorageDriver))
	}
	if (c.Username == "") != (c.Password == "") {
		errs = append(errs, errors.New("DASH_USERNAME and DASH_PASSWORD must be set together"))
	}
	if c.NotificationPageSize <= 0 {
		errs = append(errs, errors.New("NOTIFICATION_PAGE_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
