package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the embedding model requested from OpenRouter.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimensions is the dimension of text-embedding-3-small vectors.
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the chat model used for the agent and tagging.
	DefaultChatModel = "openai/gpt-4o-mini"
	// DefaultBaseURL points at OpenRouter's OpenAI-compatible API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("OPENROUTER_API_KEY environment variable not set")
)

// API is the slice of the OpenAI-compatible SDK surface the client uses.
// *openai.Client satisfies it; tests substitute a mock.
type API interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatAPI is the subset of API the agent loop and tagger depend on.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the OpenRouter client.
type Config struct {
	APIKey              string
	BaseURL             string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
}

// Client wraps an OpenAI-compatible API for embeddings and chat.
type Client struct {
	api        API
	chatModel  string
	embedModel openai.EmbeddingModel
	dimensions int
}

// NewClient creates a client with OpenRouter defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Client{
		api:        openai.NewClientWithConfig(clientConfig),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions: cfg.EmbeddingDimensions,
	}
}

// NewClientFromEnv creates a client using the OPENROUTER_API_KEY environment variable.
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// CreateChatCompletion forwards a chat request, defaulting the model when
// the caller left it empty. Implements ChatAPI.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.chatModel
	}
	return c.api.CreateChatCompletion(ctx, req)
}

// ChatModel returns the configured chat model name.
func (c *Client) ChatModel() string {
	return c.chatModel
}
