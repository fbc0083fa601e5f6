// Package config loads gateway configuration from environment variables
// with sensible defaults, and validates it before the application starts.
//
// Environment Variables:
//
// Application:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//
// Storage:
//   - STORAGE_TYPE: "sqlite", "postgres", or "memory" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./shipping_gateway.db)
//   - DATABASE_URL: PostgreSQL connection string (required for postgres)
//
// Cache:
//   - CACHE_TYPE: "local" or "redis" (default: local)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number (default: 0)
//   - RATE_SNAPSHOT_TTL: How long cached rate snapshots stay replayable (default: 24h)
//   - RATE_REDEMPTION_TTL: How long quoted rates stay redeemable (default: 48h)
//
// Carriers:
//   - CARRIER_TIMEOUT: Per-carrier rate call budget (default: 10s)
//   - FEDEX_BASE_URL: FedEx API base URL (default: https://apis.fedex.com)
//   - UPS_BASE_URL: UPS API base URL (default: https://onlinetools.ups.com)
//   - DHL_BASE_URL: DHL API base URL (default: https://express.api.dhl.com)
//   - SHIPSTREAM_BASE_URL: ShipStream API base URL
//
// Security:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//   - CONFIG_ENCRYPTION_KEY: Key for encrypting stored carrier credentials
//   - RATE_LIMIT_PER_MINUTE: Per-merchant request budget, 0 disables (default: 120)
//
// Events:
//   - EVENTS_BACKEND: "", "rabbitmq", "kafka", "aws", or "gcp" (default: disabled)
//   - RABBITMQ_URL, RABBITMQ_EXCHANGE
//   - KAFKA_BROKERS, KAFKA_TOPIC
//   - AWS_REGION, AWS_SNS_TOPIC_ARN, AWS_SQS_QUEUE_URL, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
//   - GCP_PROJECT_ID, GCP_PUBSUB_TOPIC
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the shipping gateway.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	// Storage configuration
	StorageType  string
	DatabasePath string
	DatabaseURL  string

	// Cache configuration
	CacheType         string
	RedisAddress      string
	RedisPassword     string
	RedisDB           string
	RateSnapshotTTL   time.Duration
	RateRedemptionTTL time.Duration

	// Carrier endpoints and budgets
	CarrierTimeout    time.Duration
	FedExBaseURL      string
	UPSBaseURL        string
	DHLBaseURL        string
	ShipStreamBaseURL string

	// Security
	JWTSecret     string
	EncryptionKey string

	// Per-merchant request budget; 0 disables limiting.
	RateLimitPerMinute int

	// Event publishing
	EventsBackend      string
	RabbitMQURL        string
	RabbitMQExchange   string
	KafkaBrokers       string
	KafkaTopic         string
	AWSRegion          string
	AWSSNSTopicARN     string
	AWSSQSQueueURL     string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	GCPProjectID       string
	GCPPubSubTopic     string
}

// Load reads configuration from the environment. Call Validate before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		StorageType:  getEnv("STORAGE_TYPE", "sqlite"),
		DatabasePath: getEnv("DATABASE_PATH", "./shipping_gateway.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		CacheType:         getEnv("CACHE_TYPE", "local"),
		RedisAddress:      getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnv("REDIS_DB", "0"),
		RateSnapshotTTL:   getDurationEnv("RATE_SNAPSHOT_TTL", 24*time.Hour),
		RateRedemptionTTL: getDurationEnv("RATE_REDEMPTION_TTL", 48*time.Hour),

		CarrierTimeout:    getDurationEnv("CARRIER_TIMEOUT", 10*time.Second),
		FedExBaseURL:      getEnv("FEDEX_BASE_URL", "https://apis.fedex.com"),
		UPSBaseURL:        getEnv("UPS_BASE_URL", "https://onlinetools.ups.com"),
		DHLBaseURL:        getEnv("DHL_BASE_URL", "https://express.api.dhl.com"),
		ShipStreamBaseURL: getEnv("SHIPSTREAM_BASE_URL", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 120),

		EventsBackend:      getEnv("EVENTS_BACKEND", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "shipping.events"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "shipping-events"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSSNSTopicARN:     getEnv("AWS_SNS_TOPIC_ARN", ""),
		AWSSQSQueueURL:     getEnv("AWS_SQS_QUEUE_URL", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		GCPPubSubTopic:     getEnv("GCP_PUBSUB_TOPIC", "shipping-events"),
	}
}

// Validate checks that required values are present and consistent. It
// returns the first problem found.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: must be a number", c.Port)
	}

	switch c.StorageType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for sqlite storage")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be sqlite, postgres, or memory", c.StorageType)
	}

	switch c.CacheType {
	case "local":
	case "redis":
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required for redis cache")
		}
		if _, err := strconv.Atoi(c.RedisDB); err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: must be a number", c.RedisDB)
		}
	default:
		return fmt.Errorf("invalid CACHE_TYPE %q: must be local or redis", c.CacheType)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if c.CarrierTimeout <= 0 {
		return fmt.Errorf("CARRIER_TIMEOUT must be positive")
	}

	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	switch c.EventsBackend {
	case "", "rabbitmq", "kafka", "aws", "gcp":
	default:
		return fmt.Errorf("invalid EVENTS_BACKEND %q", c.EventsBackend)
	}
	if c.EventsBackend == "rabbitmq" && c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for the rabbitmq events backend")
	}
	if c.EventsBackend == "kafka" && c.KafkaBrokers == "" {
		return fmt.Errorf("KAFKA_BROKERS is required for the kafka events backend")
	}
	if c.EventsBackend == "aws" && c.AWSSNSTopicARN == "" && c.AWSSQSQueueURL == "" {
		return fmt.Errorf("AWS_SNS_TOPIC_ARN or AWS_SQS_QUEUE_URL is required for the aws events backend")
	}
	if c.EventsBackend == "gcp" && c.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required for the gcp events backend")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
