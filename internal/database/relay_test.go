package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

type countingOutbox struct {
	MockOutboxRepository
	pending, dead int64
}

func (c *countingOutbox) Backlog(context.Context) (int64, int64, error) {
	return c.pending, c.dead, nil
}

type backlogRecorder struct {
	pending, dead int64
	calls         int
}

func (b *backlogRecorder) SetOutboxBacklog(pending, dead int64) {
	b.pending, b.dead = pending, dead
	b.calls++
}

func itemEvent(itemID, eventType string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "item",
		AggregateID:   itemID,
		EventType:     eventType,
		Payload:       json.RawMessage(`{"item_id":"` + itemID + `","status":"processed"}`),
		TargetStream:  DefaultTargetStream,
		CreatedAt:     time.Now(),
	}
}

func TestRelay_ProcessEvents(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("publishes and marks every event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: logger, batchSize: 10, source: "test"}

		events := []*OutboxEvent{itemEvent("item-1", "ITEM_CHECKED"), itemEvent("item-2", "LINK_DEAD")}

		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(nil).Twice()
		mockOutbox.On("MarkProcessed", ctx, events[0].ID).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		require.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("redis failure marks the event failed", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: logger, batchSize: 10}

		event := itemEvent("item-1", "ITEM_CHECKED")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: redis connection failed"
		})).Return(nil)

		assert.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
		mockOutbox.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})

	t.Run("empty batch does not touch redis", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: logger, batchSize: 10}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		require.NoError(t, relay.processEvents(ctx))
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("outbox read failure is returned", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{redis: new(MockRedisClient), outbox: mockOutbox, logger: logger, batchSize: 10}

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("connection reset"))

		assert.ErrorContains(t, relay.processEvents(ctx), "connection reset")
	})

	t.Run("continues after an individual failure", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: logger, batchSize: 10}

		events := []*OutboxEvent{itemEvent("item-1", "ITEM_CHECKED"), itemEvent("item-2", "ITEM_CHECKED")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values["aggregate_id"] == "item-1"
		})).Return(errors.New("redis error"))
		mockOutbox.On("MarkFailed", ctx, events[0].ID, mock.Anything).Return(nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values["aggregate_id"] == "item-2"
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		require.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("reports backlog when the outbox can count", func(t *testing.T) {
		outbox := &countingOutbox{pending: 3, dead: 1}
		recorder := &backlogRecorder{}
		relay := &Relay{redis: new(MockRedisClient), outbox: outbox, observer: recorder, logger: logger, batchSize: 10}

		outbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		require.NoError(t, relay.processEvents(ctx))
		assert.Equal(t, 1, recorder.calls)
		assert.Equal(t, int64(3), recorder.pending)
		assert.Equal(t, int64(1), recorder.dead)
	})
}

func TestRelay_PublishToRedis(t *testing.T) {
	ctx := context.Background()

	mockRedis := new(MockRedisClient)
	relay := NewRelay(new(MockOutboxRepository), mockRedis, nil, RelayConfig{})

	event := itemEvent("item-1", "ITEM_CHECKED")

	mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		if args.Stream != DefaultTargetStream {
			return false
		}
		val, ok := args.Values["data"].(string)
		if !ok {
			return false
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(val), &data); err != nil {
			return false
		}
		metadata, ok := data["metadata"].(map[string]any)
		if !ok {
			return false
		}

		return data["type"] == "ITEM_CHECKED" &&
			data["aggregate_type"] == "item" &&
			data["aggregate_id"] == "item-1" &&
			data["payload"] != nil &&
			metadata["source"] == "product-extractor"
	})).Return(nil)

	require.NoError(t, relay.publishToRedis(ctx, event))
	mockRedis.AssertExpectations(t)

	bad := itemEvent("item-2", "ITEM_CHECKED")
	bad.Payload = json.RawMessage(`not json`)
	assert.ErrorContains(t, relay.publishToRedis(ctx, bad), "unmarshal payload")
}

func TestRelay_Start(t *testing.T) {
	mockOutbox := new(MockOutboxRepository)
	relay := NewRelay(mockOutbox, new(MockRedisClient), slog.Default(), RelayConfig{
		PollInterval: 20 * time.Millisecond,
		BatchSize:    10,
	})

	mockOutbox.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- relay.Start(ctx)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on context cancellation")
	}
}

func TestNextAttempt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		retries int
		status  string
		backoff time.Duration
	}{
		{1, OutboxStatusFailed, 2 * time.Second},
		{4, OutboxStatusFailed, 16 * time.Second},
		{MaxRetryCount, OutboxStatusDeadLetter, 32 * time.Second},
		{12, OutboxStatusDeadLetter, 300 * time.Second},
	}

	for _, tt := range tests {
		status, next := NextAttempt(tt.retries, now)
		assert.Equal(t, tt.status, status, tt.retries)
		assert.Equal(t, now.Add(tt.backoff), next, tt.retries)
	}
}

func TestOutboxEvent_Prepare(t *testing.T) {
	now := time.Now().UTC()

	event := &OutboxEvent{AggregateType: "item", AggregateID: "x", EventType: "ITEM_CHECKED", Payload: json.RawMessage(`{}`)}
	require.NoError(t, event.Prepare(now))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.Equal(t, DefaultTargetStream, event.TargetStream)
	assert.Equal(t, now, event.CreatedAt)
	require.NotNil(t, event.NextRetryAt)

	for name, bad := range map[string]*OutboxEvent{
		"missing aggregate type": {AggregateID: "x", EventType: "ITEM_CHECKED", Payload: json.RawMessage(`{}`)},
		"missing event type":     {AggregateType: "item", AggregateID: "x", Payload: json.RawMessage(`{}`)},
		"missing payload":        {AggregateType: "item", AggregateID: "x", EventType: "ITEM_CHECKED"},
	} {
		assert.Error(t, bad.Prepare(now), name)
	}
}
