package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Config struct {
	ServerPort  int
	Environment string
	Auth        AuthConfig
	Database    DatabaseConfig
	Events      EventsConfig
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// EventsConfig selects the auth-event broker. Backend is one of
// "rabbitmq", "pubsub", or empty (events disabled).
type EventsConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
	Topic           string
}

func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	cfg := Config{
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		Environment: getEnv("ENV", "dev"),
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", defaultAccessTokenTTL),
			RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "identra"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "identra_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Events: EventsConfig{
			Backend: getEnv("EVENTS_BACKEND", ""),
			RabbitMQ: RabbitMQConfig{
				URL:   getEnv("RABBITMQ_URL", ""),
				Queue: getEnv("RABBITMQ_QUEUE", "auth.events"),
			},
			PubSub: PubSubConfig{
				ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile: getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				Topic:           getEnv("PUBSUB_TOPIC", "auth-events"),
			},
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// IsProduction reports whether the process serves real traffic; it
// controls the Secure attribute on token cookies.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
