package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Webhook   WebhookConfig
	Display   DisplayConfig
	Query     QueryConfig
	Retention RetentionConfig
	Slip      SlipConfig
	Operator  OperatorConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
	EventBus  EventBusConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
	BodyLimit       string
}

type StorageConfig struct {
	Driver string
	DSN    string
	LogSQL bool
}

type WebhookConfig struct {
	Secret           string
	RequireSignature bool
	VerifyClaims     bool
	// AmountUnit is "minor" when the provider sends hundredths, "major" otherwise.
	AmountUnit            string
	ProviderTZOffsetHours int
}

type DisplayConfig struct {
	TZOffsetHours int
}

type QueryConfig struct {
	DefaultLimit int
	MaxLimit     int
	SummaryDays  int
}

type RetentionConfig struct {
	MaxAge   time.Duration
	CronSpec string
	Enabled  bool
}

type SlipConfig struct {
	Backend  string
	Dir      string
	Bucket   string
	Prefix   string
	MaxBytes int64
}

type OperatorConfig struct {
	Header      string
	DefaultName string
}

type WorkerConfig struct {
	PoolSize   int
	MaxRetries int
}

type LoggingConfig struct {
	Level string
}

type EventBusConfig struct {
	ChannelBufferSize int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	displayOffset := getIntEnv("DISPLAY_TZ_OFFSET_HOURS", 7)

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", getEnv("PORT", "8080")),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnv("SERVER_BODY_LIMIT", "16M"),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "sqlite"),
			DSN:    getEnv("DATABASE_URL", "wallet.db"),
			LogSQL: getBoolEnv("STORAGE_LOG_SQL", false),
		},
		Webhook: WebhookConfig{
			Secret:                getEnv("TRUEWALLET_SECRET", ""),
			RequireSignature:      getBoolEnv("WEBHOOK_REQUIRE_SIGNATURE", false),
			VerifyClaims:          getBoolEnv("WEBHOOK_VERIFY_CLAIMS", false),
			AmountUnit:            strings.ToLower(getEnv("AMOUNT_UNIT", "minor")),
			ProviderTZOffsetHours: getIntEnv("PROVIDER_TZ_OFFSET_HOURS", displayOffset),
		},
		Display: DisplayConfig{
			TZOffsetHours: displayOffset,
		},
		Query: QueryConfig{
			DefaultLimit: getIntEnv("QUERY_DEFAULT_LIMIT", 20),
			MaxLimit:     getIntEnv("QUERY_MAX_LIMIT", 200),
			SummaryDays:  getIntEnv("SUMMARY_DAYS", 30),
		},
		Retention: RetentionConfig{
			MaxAge:   getDurationEnv("RETENTION_MAX_AGE", 60*24*time.Hour),
			CronSpec: getEnv("RETENTION_CRON", "@daily"),
			Enabled:  getBoolEnv("RETENTION_ENABLED", true),
		},
		Slip: SlipConfig{
			Backend:  getEnv("SLIP_BACKEND", "disk"),
			Dir:      getEnv("UPLOAD_FOLDER", "uploads"),
			Bucket:   getEnv("SLIP_BUCKET", ""),
			Prefix:   getEnv("SLIP_PREFIX", "slips"),
			MaxBytes: int64(getIntEnv("SLIP_MAX_BYTES", 16*1024*1024)),
		},
		Operator: OperatorConfig{
			Header:      getEnv("OPERATOR_HEADER", "X-Operator"),
			DefaultName: getEnv("OPERATOR_DEFAULT_NAME", "admin"),
		},
		Worker: WorkerConfig{
			PoolSize:   getIntEnv("WORKER_POOL_SIZE", 4),
			MaxRetries: getIntEnv("MAX_RETRIES", 5),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		EventBus: EventBusConfig{
			ChannelBufferSize: getIntEnv("EVENT_CHANNEL_BUFFER_SIZE", 1000),
		},
	}
}

// Validate rejects settings that would otherwise fall through to a default
// silently, such as a misspelt amount unit.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "memory", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q must be memory, sqlite or mysql", c.Storage.Driver))
	}

	switch c.Webhook.AmountUnit {
	case "minor", "major":
	default:
		errs = append(errs, fmt.Errorf("AMOUNT_UNIT %q must be minor or major", c.Webhook.AmountUnit))
	}

	switch c.Slip.Backend {
	case "disk", "gcs":
	default:
		errs = append(errs, fmt.Errorf("SLIP_BACKEND %q must be disk or gcs", c.Slip.Backend))
	}
	if c.Slip.Backend == "gcs" && c.Slip.Bucket == "" {
		errs = append(errs, errors.New("SLIP_BUCKET is required when SLIP_BACKEND is gcs"))
	}

	if !validOffset(c.Display.TZOffsetHours) {
		errs = append(errs, fmt.Errorf("DISPLAY_TZ_OFFSET_HOURS %d is out of range", c.Display.TZOffsetHours))
	}
	if !validOffset(c.Webhook.ProviderTZOffsetHours) {
		errs = append(errs, fmt.Errorf("PROVIDER_TZ_OFFSET_HOURS %d is out of range", c.Webhook.ProviderTZOffsetHours))
	}

	return errors.Join(errs...)
}

// validOffset covers every real UTC offset, -12 to +14.
func validOffset(hours int) bool {
	return hours >= -12 && hours <= 14
}

// DisplayLocation is the fixed zone used for display strings and day buckets.
func (c *Config) DisplayLocation() *time.Location {
	return fixedZone(c.Display.TZOffsetHours)
}

// ProviderLocation is the zone assumed for provider times without an offset.
func (c *Config) ProviderLocation() *time.Location {
	return fixedZone(c.Webhook.ProviderTZOffsetHours)
}

func fixedZone(hours int) *time.Location {
	if hours == 0 {
		return time.UTC
	}
	sign := "+"
	if hours < 0 {
		sign = "-"
	}
	abs := hours
	if abs < 0 {
		abs = -abs
	}
	return time.FixedZone("UTC"+sign+strconv.Itoa(abs), hours*3600)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid bool for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
