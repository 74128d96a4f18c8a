package service

import (
	"context"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/pagination"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/mock"
)

// MockMemoryRepository is a mock implementation of MemoryRepositoryInterface
type MockMemoryRepository struct {
	mock.Mock
}

func (m *MockMemoryRepository) Insert(ctx context.Context, mem *domain.Memory) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

func (m *MockMemoryRepository) SearchByEmbedding(ctx context.Context, ownerID string, embedding []float32, tagFilter string, limit int) ([]*domain.ScoredMemory, error) {
	args := m.Called(ctx, ownerID, embedding, tagFilter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScoredMemory), args.Error(1)
}

func (m *MockMemoryRepository) DeleteByIDs(ctx context.Context, ownerID string, ids []string) (int64, error) {
	args := m.Called(ctx, ownerID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Memory, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Memory), args.Error(1)
}

func (m *MockMemoryRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockMemoryRepository) TagCounts(ctx context.Context, ownerID string) ([]domain.TagCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TagCount), args.Error(1)
}

func (m *MockMemoryRepository) ItemsByTag(ctx context.Context, ownerID, tag string) ([]*domain.Memory, error) {
	args := m.Called(ctx, ownerID, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Memory), args.Error(1)
}

func (m *MockMemoryRepository) BackfillSourceType(ctx context.Context, ownerID string) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMemoryRepository) ListUntagged(ctx context.Context, limit int) ([]*domain.Memory, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Memory), args.Error(1)
}

func (m *MockMemoryRepository) SetTags(ctx context.Context, ownerID, id string, tags []string) error {
	args := m.Called(ctx, ownerID, id, tags)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of MessageRepositoryInterface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

func (m *MockMessageRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*MessagePageResult, error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessagePageResult), args.Error(1)
}

func (m *MockMessageRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepositoryInterface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	args := m.Called(ctx, googleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockChatClient is a mock implementation of ChatClient
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func (m *MockChatClient) ChatModel() string {
	return "openai/gpt-4o-mini"
}

// stubTagger returns a fixed tag list without a model call.
type stubTagger struct {
	tags []string
}

func (s *stubTagger) GenerateTags(ctx context.Context, content string) []string {
	return s.tags
}

// fixedUUIDGen hands out a deterministic sequence of IDs.
type fixedUUIDGen struct {
	ids  []string
	next int
}

func (g *fixedUUIDGen) NewString() string {
	if g.next >= len(g.ids) {
		return "overflow-id"
	}
	id := g.ids[g.next]
	g.next++
	return id
}
