package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Workers AI (model collaborator)
	WorkersBaseURL   string
	WorkersAccountID string
	WorkersAPIToken  string
	WorkersModel     string
	MaxTokens        int

	// Conversation loop limits
	MaxToolRounds int
	RoundTimeout  time.Duration

	// Collaborator service URLs
	RegistryURL      string
	DeviceControlURL string

	// Enabled tools ("" = full catalog)
	EnabledTools string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis (session memory)
	RedisAddr     string
	RedisPassword string

	// MQTT (turn event publishing)
	MQTTBroker string

	// JWT
	JWTPublicKeyPath string

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("ASSIST_SERVICE_PORT", "8097"),

		WorkersBaseURL:   getEnv("WORKERS_AI_BASE_URL", ""),
		WorkersAccountID: getEnv("WORKERS_AI_ACCOUNT_ID", ""),
		WorkersAPIToken:  getEnv("WORKERS_AI_API_TOKEN", ""),
		WorkersModel:     getEnv("WORKERS_AI_MODEL", "@hf/nousresearch/hermes-2-pro-mistral-7b"),
		MaxTokens:        getEnvInt("ASSIST_MAX_TOKENS", 512),

		MaxToolRounds: getEnvInt("ASSIST_MAX_TOOL_ROUNDS", 10),
		RoundTimeout:  getEnvDuration("ASSIST_ROUND_TIMEOUT", 30*time.Second),

		RegistryURL:      getEnv("REGISTRY_URL", "http://entity-registry-service:8095"),
		DeviceControlURL: getEnv("DEVICE_CONTROL_URL", "http://device-hub:8090"),

		EnabledTools: getEnv("ASSIST_ENABLED_TOOLS", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "postgres"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "user"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresDB:       getEnv("POSTGRES_DB", "assist"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MQTTBroker: getEnv("MQTT_BROKER", ""),

		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "/app/keys/jwt_public.pem"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.MaxToolRounds < 1 {
		return nil, fmt.Errorf("ASSIST_MAX_TOOL_ROUNDS must be at least 1, got %d", cfg.MaxToolRounds)
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
