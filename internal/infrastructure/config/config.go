// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBolt   = "bolt"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage
	StoreBackend string
	BoltPath     string

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// Webhook signing secrets, empty disables verification
	TallySigningSecret string
	TypeformSecret     string

	// Per-client webhook rate limit, zero RPS disables it
	WebhookRateRPS   int
	WebhookRateBurst int
	// Honour X-Forwarded-For / X-Real-IP, only safe behind a proxy that sets them
	TrustProxyHeaders bool

	// Pipeline
	EnabledBackends []string
	BackendTimeout  time.Duration
	JobTimeout      time.Duration

	// HAFAS (db.transport.rest)
	HafasBaseURL           string
	HafasRequestsPerMinute int

	// Scoring
	NightStartHour    int
	NightEndHour      int
	LongLayover       time.Duration
	FlexibleProviders []string
	CheckoutExpiry    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBolt)),
		BoltPath:     getEnv("BOLT_PATH", "./data/rebook.db"),

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "rebook"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		TallySigningSecret: getEnv("TALLY_SIGNING_SECRET", ""),
		TypeformSecret:     getEnv("TYPEFORM_SECRET", ""),

		WebhookRateRPS:   getEnvAsInt("WEBHOOK_RATE_RPS", 5),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 10),

		TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),

		EnabledBackends: getEnvAsList("ENABLED_BACKENDS", []string{"train", "bus", "flight"}),
		BackendTimeout:  time.Duration(getEnvAsInt("BACKEND_TIMEOUT_MS", 20000)) * time.Millisecond,
		JobTimeout:      time.Duration(getEnvAsInt("JOB_TIMEOUT_MS", 45000)) * time.Millisecond,

		HafasBaseURL:           getEnv("HAFAS_BASE_URL", "https://v6.db.transport.rest"),
		HafasRequestsPerMinute: getEnvAsInt("HAFAS_REQUESTS_PER_MINUTE", 100),

		NightStartHour:    getEnvAsInt("NIGHT_START_HOUR", 22),
		NightEndHour:      getEnvAsInt("NIGHT_END_HOUR", 6),
		LongLayover:       time.Duration(getEnvAsInt("LONG_LAYOVER_MINUTES", 120)) * time.Minute,
		FlexibleProviders: getEnvAsList("FLEXIBLE_PROVIDERS", []string{"Deutsche Bahn", "DB", "SBB", "OBB", "FlixBus", "FlixTrain"}),
		CheckoutExpiry:    time.Duration(getEnvAsInt("CHECKOUT_EXPIRY_MINUTES", 30)) * time.Minute,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the invariants between settings
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBolt, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT_MS must be positive")
	}
	if c.JobTimeout <= c.BackendTimeout {
		return fmt.Errorf("JOB_TIMEOUT_MS (%s) must be greater than BACKEND_TIMEOUT_MS (%s)", c.JobTimeout, c.BackendTimeout)
	}
	if len(c.EnabledBackends) == 0 {
		return fmt.Errorf("ENABLED_BACKENDS must name at least one backend")
	}
	if c.WebhookRateRPS < 0 || c.WebhookRateBurst < 0 {
		return fmt.Errorf("webhook rate limit must not be negative")
	}
	if c.NightStartHour < 0 || c.NightStartHour > 23 || c.NightEndHour < 0 || c.NightEndHour > 23 {
		return fmt.Errorf("night window hours must be within 0-23")
	}
	return nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
