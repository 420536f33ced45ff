// Package config reads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment     string
	LogLevel        string
	HTTPPort        string
	CollectionsPort string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Remote   RemoteConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Postgres PostgresConfig

	// KafkaBrokers is empty when Kafka is not used.
	KafkaBrokers []string
	// SeedDataset loads the embedded dataset orders into an empty collection.
	SeedDataset bool
}

type RemoteConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
}

type MongoConfig struct {
	URI            string
	DBName         string
	ConnectTimeout time.Duration
	MaxPoolSize    int
	MinPoolSize    int
}

type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
}

// Load reads .env (when present) and the environment. Environment variables
// win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var errs []string
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(v, key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	integer := func(key, def string) int {
		n, err := strconv.Atoi(getEnv(v, key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}

	cfg := &Config{
		Environment:     getEnv(v, "ENVIRONMENT", "development"),
		LogLevel:        getEnv(v, "LOG_LEVEL", "info"),
		HTTPPort:        getEnv(v, "HTTP_PORT", "8080"),
		CollectionsPort: getEnv(v, "COLLECTIONS_PORT", "3001"),
		RequestTimeout:  duration("REQUEST_TIMEOUT", "30s"),
		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", "10s"),
		Remote: RemoteConfig{
			BaseURL:          getEnv(v, "REMOTE_BASE_URL", "http://localhost:3001"),
			APIKey:           getEnv(v, "REMOTE_API_KEY", ""),
			Timeout:          duration("REMOTE_TIMEOUT", "5s"),
			FailureThreshold: uint32(integer("REMOTE_FAILURE_THRESHOLD", "5")),
			OpenTimeout:      duration("REMOTE_OPEN_TIMEOUT", "30s"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv(v, "JWT_SECRET", ""),
			SessionTTL: duration("SESSION_TTL", "24h"),
		},
		Redis: RedisConfig{
			Addr:     getEnv(v, "REDIS_ADDR", "localhost:6379"),
			Password: getEnv(v, "REDIS_PASSWORD", ""),
		},
		Mongo: MongoConfig{
			URI:            getEnv(v, "MONGO_URI", "mongodb://localhost:27017"),
			DBName:         getEnv(v, "MONGO_DB_NAME", "cartdb"),
			ConnectTimeout: duration("MONGO_CONNECT_TIMEOUT", "10s"),
			MaxPoolSize:    integer("MONGO_MAX_POOL_SIZE", "50"),
			MinPoolSize:    integer("MONGO_MIN_POOL_SIZE", "5"),
		},
		Postgres: PostgresConfig{
			Host:           getEnv(v, "POSTGRES_HOST", "localhost"),
			Port:           integer("POSTGRES_PORT", "5432"),
			User:           getEnv(v, "POSTGRES_USER", "postgres"),
			Password:       getEnv(v, "POSTGRES_PASSWORD", "postgres"),
			DBName:         getEnv(v, "POSTGRES_DB", "storefront"),
			MigrationsPath: getEnv(v, "MIGRATIONS_PATH", "internal/repository/migrations"),
		},
		KafkaBrokers: splitList(getEnv(v, "KAFKA_BROKERS", "")),
		SeedDataset:  getEnv(v, "SEED_DATASET", "false") == "true",
	}

	if cfg.Mongo.MaxPoolSize < 0 || cfg.Mongo.MinPoolSize < 0 {
		errs = append(errs, "MONGO pool sizes must not be negative")
	}
	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			errs = append(errs, "JWT_SECRET is required")
		} else {
			cfg.Auth.JWTSecret = "dev-secret-change-me"
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(v *viper.Viper, key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
