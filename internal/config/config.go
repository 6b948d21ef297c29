package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultLockLease is the lease duration for sync locks.
	DefaultLockLease = 5 * time.Minute
	// DefaultIdempotencyRetention is how long processed-event rows are kept.
	// Must outlast the platform's maximum redelivery window.
	DefaultIdempotencyRetention = 30 * 24 * time.Hour
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Administrative API
	AdminAPIKey string

	// Webhook shared secrets, per platform
	WebhookSecret               string
	ActiveCampaignWebhookSecret string

	// Sync configuration
	LockLease            time.Duration
	IdempotencyRetention time.Duration
	SyncMaxAttempts      int

	// Commerce platform configuration
	PlatformBaseURL     string
	PlatformAccessToken string
	PlatformStoreID     string

	// Operator alert configuration
	TelegramBotToken string
	TelegramChatID   string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	AlertEmail   string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "nuvemsync"),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		WebhookSecret:               getEnv("WEBHOOK_SECRET", ""),
		ActiveCampaignWebhookSecret: getEnv("ACTIVECAMPAIGN_WEBHOOK_SECRET", ""),

		LockLease:            getEnvAsMinutes("LOCK_LEASE_MINUTES", DefaultLockLease),
		IdempotencyRetention: getEnvAsDays("IDEMPOTENCY_RETENTION_DAYS", DefaultIdempotencyRetention),
		SyncMaxAttempts:      getEnvAsInt("SYNC_MAX_ATTEMPTS", 5),

		PlatformBaseURL:     getEnv("PLATFORM_BASE_URL", "https://api.nuvemshop.com.br/v1"),
		PlatformAccessToken: getEnv("PLATFORM_ACCESS_TOKEN", ""),
		PlatformStoreID:     getEnv("PLATFORM_STORE_ID", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
		AlertEmail:   getEnv("ALERT_EMAIL", ""),

		APIPort: getEnvAsInt("API_PORT", 6540),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.AdminAPIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required")
	}

	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}

	if c.PlatformBaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required")
	}

	if c.PlatformAccessToken == "" {
		return fmt.Errorf("PLATFORM_ACCESS_TOKEN is required")
	}

	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if c.LockLease <= 0 {
		return fmt.Errorf("LOCK_LEASE_MINUTES must be positive")
	}

	if c.IdempotencyRetention <= 0 {
		return fmt.Errorf("IDEMPOTENCY_RETENTION_DAYS must be positive")
	}

	if c.SyncMaxAttempts <= 0 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// WebhookSecretFor returns the shared secret for the given source platform.
// An empty return means the source is not configured and must be rejected.
func (c *Config) WebhookSecretFor(source string) string {
	switch source {
	case "activecampaign":
		return c.ActiveCampaignWebhookSecret
	default:
		return c.WebhookSecret
	}
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsMinutes(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil && value > 0 {
			return time.Duration(value) * time.Minute
		}
	}
	return defaultValue
}

func getEnvAsDays(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil && value > 0 {
			return time.Duration(value) * 24 * time.Hour
		}
	}
	return defaultValue
}
