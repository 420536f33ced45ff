package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := fromViper(viper.New())

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "http://localhost:3001", cfg.Remote.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, uint32(5), cfg.Remote.FailureThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 10*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, 50, cfg.Mongo.MaxPoolSize)
	assert.Equal(t, 5, cfg.Mongo.MinPoolSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.SeedDataset)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}

func TestFromViper_EnvironmentWins(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REMOTE_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SEED_DATASET", "true")
	v := viper.New()
	v.Set("HTTP_PORT", "7070")
	v.Set("REDIS_ADDR", "redis:6379")

	cfg, err := fromViper(v)

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.SeedDataset)
}

func TestFromViper_Invalid(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("POSTGRES_PORT", "five")
	t.Setenv("MONGO_MAX_POOL_SIZE", "-1")

	_, err := fromViper(viper.New())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
	assert.Contains(t, err.Error(), "POSTGRES_PORT")
	assert.Contains(t, err.Error(), "MONGO pool sizes")
}

func TestFromViper_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := fromViper(viper.New())

	require.ErrorContains(t, err, "JWT_SECRET is required")
}
