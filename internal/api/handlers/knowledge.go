package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ainotes/secondbrain/internal/api"
	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/ainotes/secondbrain/internal/domain"
)

type KnowledgeService interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Memory, error)
	BackfillSourceType(ctx context.Context, ownerID string) (int64, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type MemoryResponse struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	SourceType string   `json:"source_type"`
	SourceFile string   `json:"source_file,omitempty"`
	PageNumber int      `json:"page_number,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

type KnowledgeResponse struct {
	Notes     []*MemoryResponse `json:"notes"`
	Documents []*MemoryResponse `json:"documents"`
	Total     int               `json:"total"`
}

func memoryToResponse(m *domain.Memory) *MemoryResponse {
	resp := &MemoryResponse{
		ID:         m.ID,
		Content:    m.Content,
		Tags:       m.Tags,
		SourceType: string(m.SourceType),
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if m.SourceType == domain.SourceTypeDocument {
		resp.SourceFile = m.SourceLabel
		resp.PageNumber = m.PageNumber
	}
	return resp
}

// List returns everything the user stored, grouped by origin.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.svc.ListByOwner(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &KnowledgeResponse{
		Notes:     []*MemoryResponse{},
		Documents: []*MemoryResponse{},
		Total:     len(items),
	}
	for _, m := range items {
		out := memoryToResponse(m)
		if m.SourceType == domain.SourceTypeDocument {
			resp.Documents = append(resp.Documents, out)
		} else {
			resp.Notes = append(resp.Notes, out)
		}
	}
	api.Success(w, http.StatusOK, resp)
}

// Migrate labels legacy rows that predate source tracking.
func (h *KnowledgeHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	migrated, err := h.svc.BackfillSourceType(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int64{"migrated": migrated})
}
