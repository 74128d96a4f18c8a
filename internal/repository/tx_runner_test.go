//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/service"
	"github.com/ainotes/secondbrain/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxRunner_CommitsBothWrites(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	user := createTestUser(ctx, t, pool)
	runner := NewTxRunner(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Messages().Create(ctx, &domain.ChatMessage{
			ID: uuid.NewString(), UserID: user.ID, Role: domain.MessageRoleUser, Content: "hi", CreatedAt: now,
		}); err != nil {
			return err
		}
		return repos.Messages().Create(ctx, &domain.ChatMessage{
			ID: uuid.NewString(), UserID: user.ID, Role: domain.MessageRoleAssistant, Content: "Hello!", CreatedAt: now.Add(time.Microsecond),
		})
	})
	require.NoError(t, err)

	msgs, err := NewMessageRepository(pool).ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestTxRunner_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	user := createTestUser(ctx, t, pool)
	runner := NewTxRunner(pool)

	boom := errors.New("boom")
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Messages().Create(ctx, &domain.ChatMessage{
			ID: uuid.NewString(), UserID: user.ID, Role: domain.MessageRoleUser, Content: "hi", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	msgs, err := NewMessageRepository(pool).ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
