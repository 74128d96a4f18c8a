package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ainotes/secondbrain/internal/api"
	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, userID, message string) (*service.ChatResult, error)
	History(ctx context.Context, userID, cursor string, limit int) (*service.HistoryPage, error)
	ClearHistory(ctx context.Context, userID string) (int64, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response    string               `json:"response"`
	Suggestions []service.Suggestion `json:"suggestions"`
}

type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type HistoryResponse struct {
	Items   []*MessageResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

func messageToResponse(m *domain.ChatMessage) *MessageResponse {
	return &MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.CreatedAt.Format(time.RFC3339),
	}
}

// Chat runs one agent turn for the authenticated user.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.svc.Chat(r.Context(), userID, req.Message)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	suggestions := result.Suggestions
	if suggestions == nil {
		suggestions = []service.Suggestion{}
	}
	api.Success(w, http.StatusOK, ChatResponse{Response: result.Response, Suggestions: suggestions})
}

// History lists the user's conversation, newest first, with cursor paging.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.History(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*MessageResponse, 0, len(page.Items))
	for _, m := range page.Items {
		items = append(items, messageToResponse(m))
	}
	api.Success(w, http.StatusOK, HistoryResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

// ClearHistory wipes the user's conversation.
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := h.svc.ClearHistory(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"status":  "History cleared",
		"deleted": deleted,
	})
}
