package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/models"
)

type MockOutbox struct {
	mock.Mock
}

func (m *MockOutbox) Insert(ctx context.Context, event *database.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func item(status models.ItemStatus, price *models.PriceInfo) *models.Item {
	return &models.Item{
		ID:      uuid.MustParse("9f1c2a34-0000-4000-8000-000000000001"),
		URL:     "https://www.hm.com/en_gb/productpage.1.html",
		Status:  status,
		Name:    "Relaxed Fit Hoodie",
		Price:   price,
		InStock: true,
		Sizes:   []models.Size{{Name: "S", InStock: false}, {Name: "M", InStock: true}},
	}
}

func TestPublisher_PublishItemChecked(t *testing.T) {
	ctx := context.Background()

	t.Run("processed item with changed price", func(t *testing.T) {
		outbox := new(MockOutbox)
		publisher := NewPublisher(outbox, "", nil)

		previous := item(models.StatusPending, &models.PriceInfo{AmountMinorUnits: 4999, CurrencyCode: "EUR"})
		current := item(models.StatusProcessed, &models.PriceInfo{AmountMinorUnits: 4550, CurrencyCode: "EUR"})

		var captured *database.OutboxEvent
		outbox.On("Insert", ctx, mock.AnythingOfType("*database.OutboxEvent")).
			Run(func(args mock.Arguments) { captured = args.Get(1).(*database.OutboxEvent) }).
			Return(nil)

		require.NoError(t, publisher.PublishItemChecked(ctx, previous, current))
		outbox.AssertExpectations(t)

		require.NotNil(t, captured)
		assert.Equal(t, "item", captured.AggregateType)
		assert.Equal(t, current.ID.String(), captured.AggregateID)
		assert.Equal(t, "ITEM_CHECKED", captured.EventType)
		assert.Equal(t, database.DefaultTargetStream, captured.TargetStream)

		var payload ItemCheckedPayload
		require.NoError(t, json.Unmarshal(captured.Payload, &payload))
		assert.NotEmpty(t, payload.EventID)
		assert.False(t, payload.Timestamp.IsZero())
		assert.Equal(t, "processed", payload.Status)
		assert.True(t, payload.PriceChanged)
		assert.Equal(t, &Price{AmountMinorUnits: 4550, CurrencyCode: "EUR"}, payload.Price)
		assert.Equal(t, &Price{AmountMinorUnits: 4999, CurrencyCode: "EUR"}, payload.PreviousPrice)
		assert.Equal(t, []string{"M"}, payload.SizesInStock)
		assert.Equal(t, "product-extractor", payload.Source)
	})

	t.Run("dead link", func(t *testing.T) {
		outbox := new(MockOutbox)
		publisher := NewPublisher(outbox, "stream:custom", nil)

		outbox.On("Insert", ctx, mock.MatchedBy(func(e *database.OutboxEvent) bool {
			return e.EventType == "LINK_DEAD" && e.TargetStream == "stream:custom"
		})).Return(nil)

		current := item(models.StatusLinkDead, nil)
		current.InStock = false
		require.NoError(t, publisher.PublishItemChecked(ctx, nil, current))
		outbox.AssertExpectations(t)
	})

	t.Run("outbox failure is wrapped", func(t *testing.T) {
		outbox := new(MockOutbox)
		publisher := NewPublisher(outbox, "", nil)
		outbox.On("Insert", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := publisher.PublishItemChecked(ctx, nil, item(models.StatusProcessed, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish event")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestNewItemCheckedPayload_PriceChanged(t *testing.T) {
	eur := func(v int64) *models.PriceInfo { return &models.PriceInfo{AmountMinorUnits: v, CurrencyCode: "EUR"} }

	tests := []struct {
		name     string
		previous *models.Item
		current  *models.PriceInfo
		changed  bool
	}{
		{"first check", nil, eur(100), false},
		{"no previous price", item(models.StatusPending, nil), eur(100), false},
		{"same price", item(models.StatusProcessed, eur(100)), eur(100), false},
		{"new amount", item(models.StatusProcessed, eur(100)), eur(90), true},
		{"new currency", item(models.StatusProcessed, eur(100)), &models.PriceInfo{AmountMinorUnits: 100, CurrencyCode: "GBP"}, true},
		{"price disappeared", item(models.StatusProcessed, eur(100)), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := NewItemCheckedPayload(EventTypeItemChecked, tt.previous, item(models.StatusProcessed, tt.current))
			assert.Equal(t, tt.changed, payload.PriceChanged)
		})
	}
}
