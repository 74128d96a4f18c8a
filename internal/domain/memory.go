package domain

import (
	"strings"
	"time"
)

// SourceType records where a memory originated.
type SourceType string

const (
	SourceTypeChat     SourceType = "chat"
	SourceTypeDocument SourceType = "document"
)

// ChatSourceLabel is the source label used for chat-origin memories.
const ChatSourceLabel = "user"

// Memory represents one stored unit of text in the knowledge index.
// Memories are immutable once written; an update is a delete plus re-add.
type Memory struct {
	ID         string
	OwnerID    string
	Content    string
	Embedding  []float32
	Tags       []string
	SourceType SourceType
	SourceLabel string
	SourcePath  string // set only for document memories
	PageNumber  int    // set only for document memories
	CreatedAt   time.Time
}

// ScoredMemory pairs a memory with its similarity score (0..1, higher is better).
type ScoredMemory struct {
	Memory *Memory
	Score  float64
}

// TagCount aggregates one tag across an owner's memories.
type TagCount struct {
	Tag   string
	Count int
}

// NewChatMemory builds a chat-origin memory.
func NewChatMemory(id, ownerID, content string, tags []string, createdAt time.Time) *Memory {
	return &Memory{
		ID:          id,
		OwnerID:     ownerID,
		Content:     content,
		Tags:        NormalizeTags(tags),
		SourceType:  SourceTypeChat,
		SourceLabel: ChatSourceLabel,
		CreatedAt:   createdAt,
	}
}

// NewDocumentMemory builds a document-origin memory for one chunk of a page.
func NewDocumentMemory(id, ownerID, content string, tags []string, filename, sourcePath string, pageNumber int, createdAt time.Time) *Memory {
	return &Memory{
		ID:          id,
		OwnerID:     ownerID,
		Content:     content,
		Tags:        NormalizeTags(tags),
		SourceType:  SourceTypeDocument,
		SourceLabel: filename,
		SourcePath:  sourcePath,
		PageNumber:  pageNumber,
		CreatedAt:   createdAt,
	}
}

// ValidateMemory checks the invariants every memory must satisfy before
// it is written to the store.
func ValidateMemory(m *Memory) error {
	if m.OwnerID == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	switch m.SourceType {
	case SourceTypeChat:
		if m.SourcePath != "" || m.PageNumber != 0 {
			return ErrInvalidProvenance
		}
	case SourceTypeDocument:
		if m.SourcePath == "" || m.PageNumber <= 0 || m.SourceLabel == "" {
			return ErrInvalidProvenance
		}
	default:
		return ErrInvalidSourceType
	}
	return nil
}

// NormalizeTags lowercases, trims and deduplicates tags, dropping empty
// tokens. Order of first appearance is preserved.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		clean := strings.ToLower(strings.TrimSpace(tag))
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// HasTag reports whether the memory carries the given tag after
// case-normalization.
func (m *Memory) HasTag(tag string) bool {
	clean := strings.ToLower(strings.TrimSpace(tag))
	for _, t := range m.Tags {
		if t == clean {
			return true
		}
	}
	return false
}
