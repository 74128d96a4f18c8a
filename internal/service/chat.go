package service

import (
	"context"
	"log"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/pagination"
	"github.com/ainotes/secondbrain/internal/telemetry"
)

// Suggestion is a related stored item surfaced alongside a chat answer.
type Suggestion struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	FullContent string `json:"full_content"`
}

// ChatResult is one completed chat turn.
type ChatResult struct {
	Response    string
	Suggestions []Suggestion
}

// HistoryPage is one page of a user's conversation, newest first.
type HistoryPage struct {
	Items      []*domain.ChatMessage
	NextCursor string
	HasMore    bool
}

// ChatService runs chat turns: history in, agent loop, history out.
type ChatService struct {
	brain         *Brain
	memories      *MemoryService
	messages      MessageRepositoryInterface
	txRunner      TxRunner
	uuidGen       UUIDGenerator
	historyWindow int
}

func NewChatService(brain *Brain, memories *MemoryService, messages MessageRepositoryInterface, txRunner TxRunner, historyWindow int) *ChatService {
	return &ChatService{
		brain:         brain,
		memories:      memories,
		messages:      messages,
		txRunner:      txRunner,
		uuidGen:       &DefaultUUIDGenerator{},
		historyWindow: historyWindow,
	}
}

// Chat processes one user message: replay recent history through the agent,
// persist both sides of the turn, and attach related suggestions. The two
// history rows are written together so a crash cannot leave an assistant
// reply without its prompt.
func (s *ChatService) Chat(ctx context.Context, userID, message string) (*ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Chat", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "chat",
	})
	defer span.End()

	history, err := s.messages.ListRecent(ctx, userID, s.historyWindow)
	if err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}

	response, err := s.brain.ProcessMessage(ctx, userID, message, history)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := &domain.ChatMessage{
		ID:        s.uuidGen.NewString(),
		UserID:    userID,
		Role:      domain.MessageRoleUser,
		Content:   message,
		CreatedAt: now,
	}
	assistantMsg := &domain.ChatMessage{
		ID:        s.uuidGen.NewString(),
		UserID:    userID,
		Role:      domain.MessageRoleAssistant,
		Content:   response,
		CreatedAt: now.Add(time.Microsecond),
	}
	for _, m := range []*domain.ChatMessage{userMsg, assistantMsg} {
		if err := domain.ValidateChatMessage(m); err != nil {
			return nil, err
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		msgRepo := repos.Messages()
		if err := msgRepo.Create(ctx, userMsg); err != nil {
			return err
		}
		return msgRepo.Create(ctx, assistantMsg)
	})
	if err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}

	return &ChatResult{
		Response:    response,
		Suggestions: s.relatedSuggestions(ctx, userID, message+" "+response),
	}, nil
}

// relatedSuggestions is best-effort: a lookup failure costs the user a
// suggestion chip, not the chat turn.
func (s *ChatService) relatedSuggestions(ctx context.Context, userID, context string) []Suggestion {
	results, err := s.memories.Suggestions(ctx, userID, context)
	if err != nil {
		log.Printf("chat: failed to fetch suggestions: %v", err)
		return nil
	}
	suggestions := make([]Suggestion, 0, len(results))
	for _, r := range results {
		suggestions = append(suggestions, Suggestion{
			ID:          r.Memory.ID,
			Content:     preview(r.Memory.Content, 100),
			FullContent: r.Memory.Content,
		})
	}
	return suggestions
}

// History returns one page of the user's conversation, newest first.
func (s *ChatService) History(ctx context.Context, userID, cursor string, limit int) (*HistoryPage, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	page, err := s.messages.ListByUserWithCursor(ctx, userID, decoded, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return &HistoryPage{
		Items:      page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}, nil
}

// ClearHistory wipes the user's conversation and reports how many messages
// were removed.
func (s *ChatService) ClearHistory(ctx context.Context, userID string) (int64, error) {
	n, err := s.messages.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
