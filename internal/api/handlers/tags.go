package handlers

import (
	"context"
	"net/http"

	"github.com/ainotes/secondbrain/internal/api"
	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/go-chi/chi/v5"
)

type TagService interface {
	TagCounts(ctx context.Context, ownerID string) ([]domain.TagCount, error)
	ItemsByTag(ctx context.Context, ownerID, tag string) ([]*domain.Memory, error)
	RegenerateTags(ctx context.Context, ownerID string) (int, error)
}

type TagHandler struct {
	svc TagService
}

func NewTagHandler(svc TagService) *TagHandler {
	return &TagHandler{svc: svc}
}

type TagCountResponse struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// List aggregates the user's tags with counts.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	counts, err := h.svc.TagCounts(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]TagCountResponse, 0, len(counts))
	for _, tc := range counts {
		out = append(out, TagCountResponse{Tag: tc.Tag, Count: tc.Count})
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"tags": out})
}

// Items lists the user's memories carrying one tag.
func (h *TagHandler) Items(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tag := chi.URLParam(r, "tag")
	if tag == "" {
		api.Error(w, http.StatusBadRequest, "tag is required")
		return
	}

	items, err := h.svc.ItemsByTag(r.Context(), userID, tag)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*MemoryResponse, 0, len(items))
	for _, m := range items {
		out = append(out, memoryToResponse(m))
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"items": out})
}

// Regenerate tags the user's untagged memories.
func (h *TagHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	updated, err := h.svc.RegenerateTags(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int{"updated": updated})
}
