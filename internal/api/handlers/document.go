package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/ainotes/secondbrain/internal/api"
	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/ainotes/secondbrain/internal/service"
)

// maxUploadBytes bounds how much of a multipart upload is read into memory.
const maxUploadBytes = 25 << 20

type IngestService interface {
	IngestPDF(ctx context.Context, ownerID, filename string, data []byte) (*service.IngestResult, error)
}

// DownloadURLSigner produces a short-lived URL for a stored document.
type DownloadURLSigner interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type DocumentHandler struct {
	ingest IngestService
	signer DownloadURLSigner
}

// NewDocumentHandler creates a DocumentHandler. signer may be nil when no
// object store is configured; downloads then return 404.
func NewDocumentHandler(ingest IngestService, signer DownloadURLSigner) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, signer: signer}
}

type UploadResponse struct {
	Filename    string   `json:"filename"`
	ChunksAdded int      `json:"chunks_added"`
	Pages       int      `json:"pages"`
	Tags        []string `json:"tags"`
}

// Upload ingests one multipart PDF upload into the user's knowledge index.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.ingest == nil {
		api.Error(w, http.StatusNotFound, "document storage is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "could not read file")
		return
	}
	if len(data) > maxUploadBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	result, err := h.ingest.IngestPDF(r.Context(), userID, header.Filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UploadResponse{
		Filename:    result.Filename,
		ChunksAdded: result.Chunks,
		Pages:       result.Pages,
		Tags:        result.Tags,
	})
}

// DownloadURL returns a short-lived link to a document the user uploaded.
// The path must sit under the user's own prefix; anything else is treated
// as not found.
func (h *DocumentHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.signer == nil {
		api.Error(w, http.StatusNotFound, "document storage is not configured")
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		api.Error(w, http.StatusBadRequest, "path is required")
		return
	}
	if !strings.HasPrefix(path, "documents/"+userID+"/") || strings.Contains(path, "..") {
		api.Error(w, http.StatusNotFound, "document not found")
		return
	}

	url, err := h.signer.GenerateDownloadURL(r.Context(), path)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"url": url})
}
