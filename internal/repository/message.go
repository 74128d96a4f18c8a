package repository

import (
	"context"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/pagination"
	"github.com/ainotes/secondbrain/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles persistence of chat history.
type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx dbtx) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, user_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.Role, m.Content, m.CreatedAt,
	)
	return err
}

// ListByUser returns the user's full history in chronological order.
func (r *MessageRepository) ListByUser(ctx context.Context, userID string) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, role, content, created_at
		 FROM chat_messages WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// ListRecent returns the newest limit messages in chronological order.
func (r *MessageRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		return r.ListByUser(ctx, userID)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, role, content, created_at FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_messages WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		 ) recent ORDER BY created_at ASC, id ASC`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// ListByUserWithCursor pages through history newest-first.
func (r *MessageRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.MessagePageResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, role, content, created_at
			 FROM chat_messages
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, role, content, created_at
			 FROM chat_messages
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanMessageRows(rows)
	if err != nil {
		return nil, err
	}

	result := &service.MessagePageResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.HasMore = true
		last := result.Items[limit-1]
		result.NextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return result, nil
}

// DeleteByUser clears the user's history and reports how many rows went away.
func (r *MessageRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMessageRows(rows pgx.Rows) ([]*domain.ChatMessage, error) {
	var out []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
