package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/product-extractor/internal/models"
)

// ItemRepository persists tracked items and their price history.
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// CreateItem registers url as pending. An already tracked URL is returned
// unchanged.
func (r *ItemRepository) CreateItem(ctx context.Context, url string) (*models.Item, error) {
	query := `
		INSERT INTO items (id, url, status, created_at, updated_at)
		VALUES ($1, $2, 'pending', NOW(), NOW())
		ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		RETURNING ` + ItemColumns

	item, err := ScanItem(r.db.QueryRow(ctx, query, uuid.New(), url))
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := ScanItem(r.db.QueryRow(ctx, `SELECT `+ItemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns the most recently updated items, optionally filtered by
// status.
func (r *ItemRepository) ListItems(ctx context.Context, status models.ItemStatus, limit int) ([]*models.Item, error) {
	query := `SELECT ` + ItemColumns + ` FROM items
		WHERE ($1 = '' OR status = $1)
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := ScanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, nil
}

// NextPendingItem returns the oldest pending item, or nil when the queue is
// empty. The row is not claimed: it stays pending, and is returned again, until
// UpdateItem records an outcome. A single worker drains the queue.
func (r *ItemRepository) NextPendingItem(ctx context.Context) (*models.Item, error) {
	query := `
		SELECT ` + ItemColumns + `
		FROM items
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT 1`

	item, err := ScanItem(r.db.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next pending item: %w", err)
	}
	return item, nil
}

// UpdateItem writes the set fields of u and returns the updated row.
func (r *ItemRepository) UpdateItem(ctx context.Context, id uuid.UUID, u models.ItemUpdate) (*models.Item, error) {
	if u.Empty() {
		return r.GetItem(ctx, id)
	}

	query, args, err := BuildItemUpdate(u, id, time.Now().UTC(), PostgresPlaceholder)
	if err != nil {
		return nil, err
	}

	item, err := ScanItem(r.db.QueryRow(ctx, query+` RETURNING `+ItemColumns, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) (*models.PriceHistoryEntry, error) {
	e := NewPriceHistoryEntry(entry)
	query := `
		INSERT INTO price_history (` + PriceHistoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.Exec(ctx, query, e.ID, e.ItemID, e.AmountMinorUnits, e.CurrencyCode, e.InStock, e.CheckedAt); err != nil {
		return nil, fmt.Errorf("failed to insert price history: %w", err)
	}
	return e, nil
}

// PriceHistory lists the newest entries of one item first.
func (r *ItemRepository) PriceHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]*models.PriceHistoryEntry, error) {
	query := `SELECT ` + PriceHistoryColumns + ` FROM price_history
		WHERE item_id = $1
		ORDER BY checked_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.PriceHistoryEntry, 0)
	for rows.Next() {
		entry, err := ScanPriceHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// ResetForRecheck puts every processed or failed item back into the queue.
// Dead links stay dead.
func (r *ItemRepository) ResetForRecheck(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE items SET status = 'pending', updated_at = NOW()
		WHERE status IN ('processed', 'failed')`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset items: %w", err)
	}
	return tag.RowsAffected(), nil
}
