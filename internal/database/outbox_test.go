package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_InsertWithTx(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	t.Run("successful insert with transaction", func(t *testing.T) {
		event := &OutboxEvent{
			AggregateType: "item",
			AggregateID:   "item-1",
			EventType:     "ITEM_CHECKED",
			Payload:       json.RawMessage(`{"item_id":"item-1"}`),
		}

		err := db.Transaction(ctx, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Equal(t, OutboxStatusPending, event.Status)
		assert.Equal(t, DefaultTargetStream, event.TargetStream)
		assert.False(t, event.CreatedAt.IsZero())
	})

	t.Run("rollback on transaction failure", func(t *testing.T) {
		event := &OutboxEvent{
			AggregateType: "item",
			AggregateID:   "item-rolled-back",
			EventType:     "ITEM_CHECKED",
			Payload:       json.RawMessage(`{}`),
		}

		err := db.Transaction(ctx, func(tx pgx.Tx) error {
			if err := repo.InsertWithTx(ctx, tx, event); err != nil {
				return err
			}
			return pgx.ErrTxClosed
		})
		assert.Error(t, err)

		events, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, "item-rolled-back", e.AggregateID)
		}
	})
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	first := &OutboxEvent{AggregateType: "item", AggregateID: "item-1", EventType: "ITEM_CHECKED", Payload: json.RawMessage(`{"n":1}`)}
	second := &OutboxEvent{AggregateType: "item", AggregateID: "item-2", EventType: "LINK_DEAD", Payload: json.RawMessage(`{"n":2}`)}
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "item-1", pending[0].AggregateID)
	assert.JSONEq(t, `{"n":1}`, string(pending[0].Payload))

	require.NoError(t, repo.MarkProcessed(ctx, first.ID))
	assert.ErrorIs(t, repo.MarkProcessed(ctx, uuid.New()), ErrNotFound)

	require.NoError(t, repo.MarkFailed(ctx, second.ID, assert.AnError))

	var (
		status    string
		retries   int
		errorMsg  *string
		nextRetry *time.Time
	)
	err = db.QueryRow(ctx,
		"SELECT status, retry_count, error_message, next_retry_at FROM outbox_event WHERE id = $1",
		second.ID).Scan(&status, &retries, &errorMsg, &nextRetry)
	require.NoError(t, err)
	assert.Equal(t, OutboxStatusFailed, status)
	assert.Equal(t, 1, retries)
	require.NotNil(t, errorMsg)
	assert.Contains(t, *errorMsg, "assert.AnError")
	require.NotNil(t, nextRetry)
	assert.True(t, nextRetry.After(time.Now()))

	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed events wait for their retry time")

	backlog, dead, err := repo.Backlog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), backlog)
	assert.Equal(t, int64(0), dead)

	_, err = db.Exec(ctx, "UPDATE outbox_event SET retry_count = $1 WHERE id = $2", MaxRetryCount-1, second.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, second.ID, assert.AnError))

	backlog, dead, err = repo.Backlog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), backlog)
	assert.Equal(t, int64(1), dead)
}
