package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/ainotes/secondbrain/internal/domain"
)

// BatchSize is how many untagged memories one poll picks up.
const BatchSize = 10

// UntaggedMemoryRepository defines the persistence surface the tagging
// worker needs.
type UntaggedMemoryRepository interface {
	// ListUntagged returns memories with no tags, oldest first, across
	// all owners.
	ListUntagged(ctx context.Context, limit int) ([]*domain.Memory, error)

	// SetTags replaces a memory's tags.
	SetTags(ctx context.Context, ownerID, id string, tags []string) error
}

// TagGenerator produces category tags for stored content.
type TagGenerator interface {
	GenerateTags(ctx context.Context, content string) []string
}

// TaggingWorker backfills tags on memories that were stored without any,
// typically because the tagging model was unavailable at write time.
type TaggingWorker struct {
	repo   UntaggedMemoryRepository
	tagger TagGenerator
}

// NewTaggingWorker creates a new TaggingWorker instance
func NewTaggingWorker(repo UntaggedMemoryRepository, tagger TagGenerator) *TaggingWorker {
	return &TaggingWorker{
		repo:   repo,
		tagger: tagger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *TaggingWorker) ProcessJobs(ctx context.Context) error {
	memories, err := w.repo.ListUntagged(ctx, BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch untagged memories: %w", err)
	}

	if len(memories) == 0 {
		return nil
	}

	log.Printf("Tagging %d untagged memories", len(memories))

	for _, m := range memories {
		if err := w.tagMemory(ctx, m); err != nil {
			log.Printf("Error tagging memory %s: %v", m.ID, err)
		}
	}

	return nil
}

func (w *TaggingWorker) tagMemory(ctx context.Context, m *domain.Memory) error {
	tags := w.tagger.GenerateTags(ctx, m.Content)
	if len(tags) == 0 {
		// Still no tags; leave the memory for a later pass.
		return nil
	}

	if err := w.repo.SetTags(ctx, m.OwnerID, m.ID, tags); err != nil {
		return fmt.Errorf("failed to store tags: %w", err)
	}

	log.Printf("Memory %s tagged: %v", m.ID, tags)
	return nil
}
