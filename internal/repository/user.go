package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles persistence of authenticated users.
type UserRepository struct {
	db dbtx
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

func NewUserRepositoryWithTx(tx dbtx) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, google_id, email, name, picture, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.GoogleID, u.Email, u.Name, nullableString(u.Picture), u.CreatedAt,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT id, google_id, email, name, picture, created_at
		 FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT id, google_id, email, name, picture, created_at
		 FROM users WHERE google_id = $1`, googleID)
}

// UpdateProfile refreshes the mutable profile fields on sign-in.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET email = $1, name = $2, picture = $3 WHERE id = $4`,
		u.Email, u.Name, nullableString(u.Picture), u.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UserPageResult is one page of users for admin listing.
type UserPageResult struct {
	Items      []*domain.User
	NextCursor string
	HasMore    bool
}

// ListWithCursor pages over users, newest first.
func (r *UserRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*UserPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, google_id, email, name, picture, created_at
	          FROM users`
	args := []any{}
	if cursor != nil {
		query += ` WHERE (created_at, id) < ($1, $2)`
		args = append(args, cursor.Timestamp, cursor.LastID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + strconv.Itoa(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		var picture *string
		if err := rows.Scan(&u.ID, &u.GoogleID, &u.Email, &u.Name, &picture, &u.CreatedAt); err != nil {
			return nil, err
		}
		if picture != nil {
			u.Picture = *picture
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(users) > limit
	if hasMore {
		users = users[:limit]
	}

	result := &UserPageResult{Items: users, HasMore: hasMore}
	if hasMore && len(users) > 0 {
		last := users[len(users)-1]
		result.NextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return result, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	var picture *string
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.GoogleID, &u.Email, &u.Name, &picture, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if picture != nil {
		u.Picture = *picture
	}
	return &u, nil
}
