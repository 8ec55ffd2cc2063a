package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type AppConfig struct {
	DatabaseURL        string
	RedisAddr          string
	RedisSentinelHosts string
	RedisMasterName    string
	RabbitMQURL        string
	ListenAddr         string
	LogLevel           string

	Agent AgentConfig

	// Number of most recent messages handed to the agent as context.
	ContextMessageLimit int
	// Minutes between recurrence sweep cycles.
	SweepIntervalMinutes int
}

type AgentConfig struct {
	URL            string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

func getEnv(key string, logger *zap.Logger) string {
	value := os.Getenv(key)
	if value == "" {
		logger.Fatal("required environment variable is not set", zap.String("key", key))
	}
	return value
}

func getEnvInt(key string, fallback int, logger *zap.Logger) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logger.Fatal("environment variable must be a positive integer", zap.String("key", key), zap.String("value", value))
	}
	return parsed
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found")
	}

	config := &AppConfig{
		DatabaseURL:        getEnv("DATABASE_URL", logger),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisSentinelHosts: os.Getenv("REDIS_SENTINEL_HOSTS"),
		RedisMasterName:    os.Getenv("REDIS_MASTER"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", logger),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),

		Agent: AgentConfig{
			URL:            getEnv("AGENT_API_URL", logger),
			APIKey:         getEnv("AGENT_API_KEY", logger),
			Model:          os.Getenv("AGENT_MODEL"),
			TimeoutSeconds: getEnvInt("AGENT_TIMEOUT_SECONDS", 30, logger),
		},

		ContextMessageLimit:  getEnvInt("CONTEXT_MESSAGE_LIMIT", 20, logger),
		SweepIntervalMinutes: getEnvInt("SWEEP_INTERVAL_MINUTES", 60, logger),
	}

	if config.RedisAddr == "" && config.RedisSentinelHosts == "" {
		logger.Fatal("either REDIS_ADDR or REDIS_SENTINEL_HOSTS must be set")
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info" // Set default log level
	}
	if config.Agent.Model == "" {
		config.Agent.Model = "gpt-4"
	}

	return config
}
