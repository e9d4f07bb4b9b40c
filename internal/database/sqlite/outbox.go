package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/maltedev/product-extractor/internal/database"
)

func (s *Store) Insert(ctx context.Context, event *database.OutboxEvent) error {
	if err := event.Prepare(s.now()); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			created_at, next_retry_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		string(event.Payload), event.TargetStream, event.Status, event.RetryCount,
		event.CreatedAt, *event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (s *Store) GetPending(ctx context.Context, limit int) ([]*database.OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status IN (?, ?)
			AND next_retry_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`,
		database.OutboxStatusPending, database.OutboxStatusFailed, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	defer rows.Close()

	var events []*database.OutboxEvent
	for rows.Next() {
		event := &database.OutboxEvent{}
		var payload []byte
		err := rows.Scan(
			&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
			&payload, &event.TargetStream, &event.Status, &event.RetryCount,
			&event.ErrorMessage, &event.CreatedAt, &event.ProcessedAt, &event.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE outbox_event SET status = ?, processed_at = ? WHERE id = ?`,
		database.OutboxStatusProcessed, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, database.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, processErr error) error {
	var retryCount int
	if err := s.db.QueryRowContext(ctx, `SELECT retry_count FROM outbox_event WHERE id = ?`, id).Scan(&retryCount); err != nil {
		return fmt.Errorf("failed to get retry count: %w", err)
	}

	retryCount++
	status, nextRetryAt := database.NextAttempt(retryCount, s.now())

	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_event
		SET status = ?, retry_count = ?, error_message = ?, next_retry_at = ?
		WHERE id = ?`, status, retryCount, processErr.Error(), nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

func (s *Store) Backlog(ctx context.Context) (pending, dead int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM outbox_event`,
		database.OutboxStatusPending, database.OutboxStatusFailed, database.OutboxStatusDeadLetter,
	).Scan(&pending, &dead)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count outbox backlog: %w", err)
	}
	return pending, dead, nil
}
