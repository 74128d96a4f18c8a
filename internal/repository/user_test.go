//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUserRepository(pool)

	u := &domain.User{
		ID:        uuid.NewString(),
		GoogleID:  "google-sub-1",
		Email:     "jo@example.com",
		Name:      "Jo",
		Picture:   "https://example.com/jo.png",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, u))

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)
	assert.Equal(t, u.Picture, byID.Picture)

	byGoogle, err := repo.GetByGoogleID(ctx, "google-sub-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byGoogle.ID)
}

func TestUserRepository_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUserRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByGoogleID(ctx, "missing-sub")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUserRepository(pool)

	u := &domain.User{
		ID:        uuid.NewString(),
		GoogleID:  "google-sub-2",
		Email:     "old@example.com",
		Name:      "Old Name",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, u))

	u.Email = "new@example.com"
	u.Name = "New Name"
	u.Picture = "https://example.com/new.png"
	require.NoError(t, repo.UpdateProfile(ctx, u))

	fresh, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", fresh.Email)
	assert.Equal(t, "New Name", fresh.Name)
	assert.Equal(t, "https://example.com/new.png", fresh.Picture)
}

func TestUserRepository_UpdateProfile_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUserRepository(pool)

	err := repo.UpdateProfile(ctx, &domain.User{ID: uuid.NewString(), Email: "x@example.com", Name: "X"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUserRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)
	for i := 0; i < 3; i++ {
		u := &domain.User{
			ID:        uuid.NewString(),
			GoogleID:  uuid.NewString(),
			Email:     "user@example.com",
			Name:      "User",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, u))
	}

	page, err := repo.ListWithCursor(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)

	// Newest first.
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))
}
