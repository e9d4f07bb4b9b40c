// Package events publishes item check outcomes through the transactional
// outbox; the relay forwards them to Redis streams.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/models"
)

type EventType string

const (
	// EventTypeItemChecked is published after every successful check
	EventTypeItemChecked EventType = "ITEM_CHECKED"
	// EventTypeLinkDead is published when a product page is gone
	EventTypeLinkDead EventType = "LINK_DEAD"
)

// Price is a monetary amount in minor units.
type Price struct {
	AmountMinorUnits int64  `json:"amount_minor_units"`
	CurrencyCode     string `json:"currency_code"`
}

// ItemCheckedPayload is the body of both event types.
type ItemCheckedPayload struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	ItemID        string    `json:"item_id"`
	URL           string    `json:"url"`
	Status        string    `json:"status"`
	Name          string    `json:"name,omitempty"`
	Price         *Price    `json:"price,omitempty"`
	PreviousPrice *Price    `json:"previous_price,omitempty"`
	PriceChanged  bool      `json:"price_changed"`
	InStock       bool      `json:"in_stock"`
	SizesInStock  []string  `json:"sizes_in_stock,omitempty"`
	Source        string    `json:"source"`
}

// OutboxWriter stores one outbox row. Implemented by the Postgres outbox
// repository and the sqlite store.
type OutboxWriter interface {
	Insert(ctx context.Context, event *database.OutboxEvent) error
}

// Publisher handles event publishing using the transactional outbox pattern
type Publisher struct {
	outbox OutboxWriter
	stream string
	logger *slog.Logger
}

func NewPublisher(outbox OutboxWriter, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultTargetStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		outbox: outbox,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishItemChecked records the outcome of a check. previous is the item
// as it was before the check.
func (p *Publisher) PublishItemChecked(ctx context.Context, previous, current *models.Item) error {
	eventType := EventTypeItemChecked
	if current.Status == models.StatusLinkDead {
		eventType = EventTypeLinkDead
	}
	return p.publish(ctx, NewItemCheckedPayload(eventType, previous, current))
}

// NewItemCheckedPayload builds the event body from the item before and after
// the check.
func NewItemCheckedPayload(eventType EventType, previous, current *models.Item) *ItemCheckedPayload {
	payload := &ItemCheckedPayload{
		EventType: string(eventType),
		ItemID:    current.ID.String(),
		URL:       current.URL,
		Status:    string(current.Status),
		Name:      current.Name,
		Price:     convertPrice(current.Price),
		InStock:   current.InStock,
	}
	if previous != nil {
		payload.PreviousPrice = convertPrice(previous.Price)
	}
	payload.PriceChanged = priceChanged(payload.PreviousPrice, payload.Price)

	for _, size := range current.Sizes {
		if size.InStock {
			payload.SizesInStock = append(payload.SizesInStock, size.Name)
		}
	}
	return payload
}

func (p *Publisher) publish(ctx context.Context, payload *ItemCheckedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	if payload.Source == "" {
		payload.Source = "product-extractor"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "item",
		AggregateID:   payload.ItemID,
		EventType:     payload.EventType,
		Payload:       data,
		TargetStream:  p.stream,
	}

	if err := p.outbox.Insert(ctx, outboxEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"item_id", payload.ItemID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}

func convertPrice(p *models.PriceInfo) *Price {
	if p == nil {
		return nil
	}
	return &Price{AmountMinorUnits: p.AmountMinorUnits, CurrencyCode: p.CurrencyCode}
}

// priceChanged is false for the first observed price.
func priceChanged(previous, current *Price) bool {
	if previous == nil || current == nil {
		return false
	}
	return *previous != *current
}
