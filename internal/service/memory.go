package service

import (
	"context"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/pagination"
	"github.com/ainotes/secondbrain/internal/telemetry"
	"github.com/google/uuid"
)

// MemoryRepositoryInterface defines the repository interface for memory persistence
type MemoryRepositoryInterface interface {
	Insert(ctx context.Context, m *domain.Memory) error
	SearchByEmbedding(ctx context.Context, ownerID string, embedding []float32, tagFilter string, limit int) ([]*domain.ScoredMemory, error)
	DeleteByIDs(ctx context.Context, ownerID string, ids []string) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Memory, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	TagCounts(ctx context.Context, ownerID string) ([]domain.TagCount, error)
	ItemsByTag(ctx context.Context, ownerID, tag string) ([]*domain.Memory, error)
	BackfillSourceType(ctx context.Context, ownerID string) (int64, error)
	ListUntagged(ctx context.Context, limit int) ([]*domain.Memory, error)
	SetTags(ctx context.Context, ownerID, id string, tags []string) error
}

// MessageRepositoryInterface defines the repository interface for chat history persistence
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.ChatMessage) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*MessagePageResult, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type MessagePageResult struct {
	Items      []*domain.ChatMessage
	NextCursor string
	HasMore    bool
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// TagGenerator produces content tags. Implementations must never fail the
// caller: a generation problem yields an empty tag list.
type TagGenerator interface {
	GenerateTags(ctx context.Context, content string) []string
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// MemoryConfig tunes retrieval behavior.
type MemoryConfig struct {
	// QueryTopK is how many neighbors a recall query returns.
	QueryTopK int
	// DeleteThreshold is the minimum similarity for a delete-by-description
	// to touch anything.
	DeleteThreshold float64
	// SuggestionMinScore filters follow-up suggestions to close matches only.
	SuggestionMinScore float64
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		QueryTopK:          3,
		DeleteThreshold:    0.6,
		SuggestionMinScore: 0.7,
	}
}

// MemoryService handles business logic for the per-user knowledge index.
type MemoryService struct {
	repo     MemoryRepositoryInterface
	embedder EmbeddingClient
	tagger   TagGenerator
	uuidGen  UUIDGenerator
	cfg      MemoryConfig
}

// NewMemoryService creates a new MemoryService instance
func NewMemoryService(repo MemoryRepositoryInterface, embedder EmbeddingClient, tagger TagGenerator, cfg MemoryConfig) *MemoryService {
	return NewMemoryServiceWithUUIDGen(repo, embedder, tagger, cfg, &DefaultUUIDGenerator{})
}

// NewMemoryServiceWithUUIDGen creates a new MemoryService with custom UUID generator (for testing)
func NewMemoryServiceWithUUIDGen(repo MemoryRepositoryInterface, embedder EmbeddingClient, tagger TagGenerator, cfg MemoryConfig, uuidGen UUIDGenerator) *MemoryService {
	if cfg.QueryTopK <= 0 {
		cfg.QueryTopK = DefaultMemoryConfig().QueryTopK
	}
	if cfg.DeleteThreshold <= 0 {
		cfg.DeleteThreshold = DefaultMemoryConfig().DeleteThreshold
	}
	if cfg.SuggestionMinScore <= 0 {
		cfg.SuggestionMinScore = DefaultMemoryConfig().SuggestionMinScore
	}
	return &MemoryService{
		repo:     repo,
		embedder: embedder,
		tagger:   tagger,
		uuidGen:  uuidGen,
		cfg:      cfg,
	}
}

// AddChat stores one chat-origin memory: tags it, embeds it, writes it.
func (s *MemoryService) AddChat(ctx context.Context, ownerID, content string) (*domain.Memory, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.AddChat", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "add",
	})
	defer span.End()

	tags := s.tagger.GenerateTags(ctx, content)

	embedding, err := s.embedder.GenerateEmbedding(ctx, content)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "failed to embed content", err)
	}

	m := domain.NewChatMemory(s.uuidGen.NewString(), ownerID, content, tags, time.Now().UTC())
	m.Embedding = embedding

	if err := domain.ValidateMemory(m); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}
	return m, nil
}

// Search returns the owner's closest memories for a free-text query.
// tagFilter, when non-empty, restricts matches to one tag.
func (s *MemoryService) Search(ctx context.Context, ownerID, query, tagFilter string) ([]*domain.ScoredMemory, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.Search", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "search",
	})
	defer span.End()

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "failed to embed query", err)
	}

	results, err := s.repo.SearchByEmbedding(ctx, ownerID, embedding, tagFilter, s.cfg.QueryTopK)
	if err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}
	return results, nil
}

// Suggestions returns only the close matches for a query, for surfacing
// related notes alongside an answer.
func (s *MemoryService) Suggestions(ctx context.Context, ownerID, query string) ([]*domain.ScoredMemory, error) {
	results, err := s.Search(ctx, ownerID, query, "")
	if err != nil {
		return nil, err
	}
	close := results[:0]
	for _, r := range results {
		if r.Score >= s.cfg.SuggestionMinScore {
			close = append(close, r)
		}
	}
	return close, nil
}

// DeleteMatching removes the owner's single best match for a description,
// provided it is similar enough. Returns the deleted memory, or nil when
// nothing cleared the threshold.
func (s *MemoryService) DeleteMatching(ctx context.Context, ownerID, description string) (*domain.Memory, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.DeleteMatching", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "delete",
	})
	defer span.End()

	embedding, err := s.embedder.GenerateEmbedding(ctx, description)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "failed to embed description", err)
	}

	results, err := s.repo.SearchByEmbedding(ctx, ownerID, embedding, "", 1)
	if err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}
	if len(results) == 0 || results[0].Score < s.cfg.DeleteThreshold {
		return nil, nil
	}

	target := results[0].Memory
	deleted, err := s.repo.DeleteByIDs(ctx, ownerID, []string{target.ID})
	if err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}
	if deleted == 0 {
		return nil, nil
	}
	return target, nil
}

func (s *MemoryService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Memory, error) {
	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (s *MemoryService) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	n, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (s *MemoryService) TagCounts(ctx context.Context, ownerID string) ([]domain.TagCount, error) {
	counts, err := s.repo.TagCounts(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return counts, nil
}

func (s *MemoryService) ItemsByTag(ctx context.Context, ownerID, tag string) ([]*domain.Memory, error) {
	normalized := domain.NormalizeTags([]string{tag})
	if len(normalized) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tag is required")
	}
	items, err := s.repo.ItemsByTag(ctx, ownerID, normalized[0])
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// BackfillSourceType stamps chat provenance on legacy rows. Safe to call
// repeatedly.
func (s *MemoryService) BackfillSourceType(ctx context.Context, ownerID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.BackfillSourceType", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "migrate",
	})
	defer span.End()

	n, err := s.repo.BackfillSourceType(ctx, ownerID)
	if err != nil {
		span.SetError(err)
		return 0, storeErr(err)
	}
	return n, nil
}

// RegenerateTags tags the owner's untagged memories and reports how many
// changed. Memories that already carry tags are left alone.
func (s *MemoryService) RegenerateTags(ctx context.Context, ownerID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.RegenerateTags", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "retag",
	})
	defer span.End()

	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		span.SetError(err)
		return 0, storeErr(err)
	}

	updated := 0
	for _, m := range items {
		if len(m.Tags) > 0 {
			continue
		}
		tags := s.tagger.GenerateTags(ctx, m.Content)
		if len(tags) == 0 {
			continue
		}
		if err := s.repo.SetTags(ctx, ownerID, m.ID, tags); err != nil {
			span.SetError(err)
			return updated, storeErr(err)
		}
		updated++
	}
	return updated, nil
}

func storeErr(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "knowledge store is unavailable", err)
}
