package repository

import (
	"context"
	"strconv"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const memoryColumns = `id, owner_id, content, tags, source_type, source_label, source_path, page_number, created_at`

// MemoryRepository handles persistence and vector search over memories.
// Every query is scoped by owner_id; there is no cross-owner read path.
type MemoryRepository struct {
	db dbtx
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: pool}
}

func NewMemoryRepositoryWithTx(tx dbtx) *MemoryRepository {
	return &MemoryRepository{db: tx}
}

func (r *MemoryRepository) Insert(ctx context.Context, m *domain.Memory) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO memories (id, owner_id, content, embedding, tags, source_type, source_label, source_path, page_number, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.OwnerID, m.Content, pgvector.NewVector(m.Embedding), m.Tags,
		m.SourceType, m.SourceLabel, nullableString(m.SourcePath), nullableInt(m.PageNumber), m.CreatedAt,
	)
	return err
}

// SearchByEmbedding returns the owner's memories closest to the query
// vector, scored 1/(1+distance) so 1.0 means identical. A non-empty
// tagFilter restricts results to memories carrying that tag.
func (r *MemoryRepository) SearchByEmbedding(ctx context.Context, ownerID string, embedding []float32, tagFilter string, limit int) ([]*domain.ScoredMemory, error) {
	if limit <= 0 {
		limit = 3
	}

	query := `SELECT ` + memoryColumns + `,
	        1.0 / (1.0 + (embedding <=> $1)) AS score
	 FROM memories
	 WHERE owner_id = $2`
	args := []any{pgvector.NewVector(embedding), ownerID}

	if tagFilter != "" {
		query += ` AND $3 = ANY(tags)`
		args = append(args, tagFilter)
	}

	query += ` ORDER BY score DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ScoredMemory
	for rows.Next() {
		var m domain.Memory
		var score float64
		if err := scanMemory(rows, &m, &score); err != nil {
			return nil, err
		}
		out = append(out, &domain.ScoredMemory{Memory: &m, Score: score})
	}
	return out, rows.Err()
}

// DeleteByIDs removes the given memories, refusing rows owned by anyone else.
func (r *MemoryRepository) DeleteByIDs(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM memories WHERE owner_id = $1 AND id = ANY($2)`,
		ownerID, ids,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Memory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

func (r *MemoryRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM memories WHERE owner_id = $1`, ownerID).Scan(&n)
	return n, err
}

// TagCounts aggregates the owner's tags with per-tag memory counts.
func (r *MemoryRepository) TagCounts(ctx context.Context, ownerID string) ([]domain.TagCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tag, COUNT(*) AS n
		 FROM memories, unnest(tags) AS tag
		 WHERE owner_id = $1
		 GROUP BY tag
		 ORDER BY n DESC, tag ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TagCount
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (r *MemoryRepository) ItemsByTag(ctx context.Context, ownerID, tag string) ([]*domain.Memory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories
		 WHERE owner_id = $1 AND $2 = ANY(tags)
		 ORDER BY created_at DESC, id DESC`,
		ownerID, tag,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

// BackfillSourceType stamps chat provenance on rows written before
// provenance columns existed. Idempotent.
func (r *MemoryRepository) BackfillSourceType(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE memories
		 SET source_type = $1, source_label = $2
		 WHERE owner_id = $3 AND (source_type IS NULL OR source_type = '')`,
		domain.SourceTypeChat, domain.ChatSourceLabel, ownerID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListUntagged returns memories with no tags, oldest first, across all
// owners. Used by the background tagging worker.
func (r *MemoryRepository) ListUntagged(ctx context.Context, limit int) ([]*domain.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories
		 WHERE tags IS NULL OR cardinality(tags) = 0
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

func (r *MemoryRepository) SetTags(ctx context.Context, ownerID, id string, tags []string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memories SET tags = $1 WHERE owner_id = $2 AND id = $3`,
		tags, ownerID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemoryNotFound
	}
	return nil
}

func scanMemoryRows(rows pgx.Rows) ([]*domain.Memory, error) {
	var out []*domain.Memory
	for rows.Next() {
		var m domain.Memory
		if err := scanMemory(rows, &m, nil); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func scanMemory(rows pgx.Rows, m *domain.Memory, score *float64) error {
	// Provenance columns are nullable for rows written before they existed.
	var sourceType, sourceLabel, sourcePath *string
	var pageNumber *int
	dest := []any{&m.ID, &m.OwnerID, &m.Content, &m.Tags, &sourceType, &sourceLabel, &sourcePath, &pageNumber, &m.CreatedAt}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	if sourceType != nil {
		m.SourceType = domain.SourceType(*sourceType)
	}
	if sourceLabel != nil {
		m.SourceLabel = *sourceLabel
	}
	if sourcePath != nil {
		m.SourcePath = *sourcePath
	}
	if pageNumber != nil {
		m.PageNumber = *pageNumber
	}
	return nil
}
