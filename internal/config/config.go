package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// GatewayConfig selects and configures the completion backend. The API key
// travels through this struct into the provider constructor and nowhere
// else.
type GatewayConfig struct {
	Provider      string // "openrouter" or "ollama"
	Model         string
	OpenRouterKey string
	OllamaBaseURL string
	Referer       string
	Title         string
}

type ChatConfig struct {
	// MaxPairs bounds the context window: 2*MaxPairs prior messages per
	// completion call, for latency and cost control.
	MaxPairs      int
	TurnTopicName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Gateway: GatewayConfig{
			Provider:      getEnv("COMPLETION_PROVIDER", "openrouter"),
			Model:         getEnv("COMPLETION_MODEL", "mistralai/mistral-7b-instruct"),
			OpenRouterKey: getEnv("OPENROUTER_API_KEY", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Referer:       getEnv("OPENROUTER_REFERER", "http://localhost:3000/"),
			Title:         getEnv("OPENROUTER_TITLE", "Jose Rizal Chatbot"),
		},
		Chat: ChatConfig{
			MaxPairs:      getEnvAsInt("CHAT_CONTEXT_MAX_PAIRS", 10),
			TurnTopicName: getEnv("CHAT_TURN_TOPIC_NAME", "CHAT_TURN_RECORDED"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
