package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// OpenRouter exposes an OpenAI-compatible API; the stock OpenAI
	// endpoint works too by overriding the base URL.
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterAPIBase string `envconfig:"OPENROUTER_API_BASE" default:"https://openrouter.ai/api/v1"`
	ChatModel         string `envconfig:"CHAT_MODEL" default:"openai/gpt-4o-mini"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDims     int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	JWTSecret         string `envconfig:"JWT_SECRET" default:"change-me-in-production"`
	JWTExpirationDays int    `envconfig:"JWT_EXPIRATION_DAYS" default:"7"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"secondbrain-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Chat requests allowed per user per minute.
	ChatRateLimit int `envconfig:"CHAT_RATE_LIMIT" default:"5"`

	// Retrieval tuning. The defaults mirror the values the assistant
	// shipped with; none of them is load-bearing.
	QueryTopK          int     `envconfig:"QUERY_TOP_K" default:"3"`
	DeleteThreshold    float64 `envconfig:"DELETE_THRESHOLD" default:"0.6"`
	SuggestionMinScore float64 `envconfig:"SUGGESTION_MIN_SCORE" default:"0.7"`

	// Safety cap on model/tool round-trips per chat message.
	MaxAgentIterations int `envconfig:"MAX_AGENT_ITERATIONS" default:"10"`

	// Number of most recent history messages forwarded to the model.
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"40"`

	// Target chunk size in characters for document ingestion.
	ChunkTargetChars int `envconfig:"CHUNK_TARGET_CHARS" default:"1000"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("BRAIN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}
