package openai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAPI is a mock for the OpenAI-compatible SDK surface
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	args := m.Called(ctx, conv)
	return args.Get(0).(openai.EmbeddingResponse), args.Error(1)
}

func (m *MockAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, dimensions: 1536, embedModel: DefaultEmbeddingModel}

	ctx := context.Background()
	text := "This is a test document about Go programming."
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, mock.Anything).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: expectedEmbedding}},
	}, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	embedding, err := client.GenerateEmbedding(context.Background(), "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, dimensions: 1536, embedModel: DefaultEmbeddingModel}

	apiErr := errors.New("API rate limit exceeded")
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(openai.EmbeddingResponse{}, apiErr)

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, dimensions: 1536, embedModel: DefaultEmbeddingModel}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: make([]float32, 768)}},
	}, nil)

	_, err := client.GenerateEmbedding(context.Background(), "Test text")

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_CreateChatCompletion_DefaultsModel(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, chatModel: "openai/gpt-4o-mini"}

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "openai/gpt-4o-mini"
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hi"}}},
	}, nil)

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	mockAPI.AssertExpectations(t)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultChatModel, client.ChatModel())
	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
}

func TestNewClientFromEnv_MissingKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := NewClientFromEnv()
	assert.Equal(t, ErrNoAPIKey, err)
}
