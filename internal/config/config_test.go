package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := Load()
	c.JWTSecret = "0123456789abcdef0123456789abcdef"
	return c
}

func TestLoad_Defaults(t *testing.T) {
	c := Load()

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "sqlite", c.StorageType)
	assert.Equal(t, "local", c.CacheType)
	assert.Equal(t, 10*time.Second, c.CarrierTimeout)
	assert.Equal(t, 24*time.Hour, c.RateSnapshotTTL)
	assert.Equal(t, "", c.EventsBackend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("CARRIER_TIMEOUT", "3s")

	c := Load()

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, "postgres", c.StorageType)
	assert.Equal(t, 3*time.Second, c.CarrierTimeout)
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_JWTSecret(t *testing.T) {
	c := validConfig()
	c.JWTSecret = ""
	assert.ErrorContains(t, c.Validate(), "JWT_SECRET")

	c.JWTSecret = "too-short"
	assert.ErrorContains(t, c.Validate(), "32 characters")
}

func TestValidate_StorageType(t *testing.T) {
	c := validConfig()
	c.StorageType = "oracle"
	assert.ErrorContains(t, c.Validate(), "STORAGE_TYPE")

	c = validConfig()
	c.StorageType = "postgres"
	c.DatabaseURL = ""
	assert.ErrorContains(t, c.Validate(), "DATABASE_URL")
}

func TestValidate_CacheType(t *testing.T) {
	c := validConfig()
	c.CacheType = "memcached"
	assert.ErrorContains(t, c.Validate(), "CACHE_TYPE")

	c = validConfig()
	c.CacheType = "redis"
	c.RedisDB = "not-a-number"
	assert.ErrorContains(t, c.Validate(), "REDIS_DB")
}

func TestValidate_EventsBackend(t *testing.T) {
	c := validConfig()
	c.EventsBackend = "nats"
	assert.ErrorContains(t, c.Validate(), "EVENTS_BACKEND")

	c = validConfig()
	c.EventsBackend = "rabbitmq"
	assert.ErrorContains(t, c.Validate(), "RABBITMQ_URL")

	c = validConfig()
	c.EventsBackend = "kafka"
	assert.ErrorContains(t, c.Validate(), "KAFKA_BROKERS")
}

func TestValidate_RateLimit(t *testing.T) {
	c := validConfig()
	c.RateLimitPerMinute = -1
	assert.ErrorContains(t, c.Validate(), "RATE_LIMIT_PER_MINUTE")

	c.RateLimitPerMinute = 0
	assert.NoError(t, c.Validate())
}

func TestValidate_Port(t *testing.T) {
	c := validConfig()
	c.Port = "not-a-port"
	assert.ErrorContains(t, c.Validate(), "PORT")
}
