// Package sqlite is the single-file item store for running without Postgres.
// It implements the same item, price history and outbox operations as the
// Postgres repositories.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/models"
)

type Store struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// NewStore opens (or creates) the database file and applies the schema.
func NewStore(ctx context.Context, log *slog.Logger, storagePath string) (*Store, error) {
	dtb, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", storagePath))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY churn
	dtb.SetMaxOpenConns(1)

	if err = dtb.PingContext(ctx); err != nil {
		dtb.Close()
		return nil, fmt.Errorf("unable to establish connection to database: %w", err)
	}

	if err = initSchema(ctx, dtb); err != nil {
		dtb.Close()
		return nil, fmt.Errorf("DB schema initialization error: %w", err)
	}

	return newStore(dtb, log), nil
}

// NewForTest wraps an existing handle without touching the schema.
func NewForTest(dtb *sql.DB) *Store {
	return newStore(dtb, nil)
}

func newStore(dtb *sql.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:  dtb,
		log: log.With("component", "sqlite_store"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func initSchema(ctx context.Context, dtb *sql.DB) error {
	const migrationQuery = `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY NOT NULL,
		url TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		name TEXT NOT NULL DEFAULT '',
		price_amount INTEGER,
		currency TEXT,
		sizes TEXT NOT NULL DEFAULT '[]',
		colors TEXT NOT NULL DEFAULT '[]',
		images TEXT NOT NULL DEFAULT '[]',
		in_stock BOOLEAN NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		last_checked_at TIMESTAMP,
		last_check_error TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_status ON items (status, created_at);

	CREATE TABLE IF NOT EXISTS price_history (
		id TEXT PRIMARY KEY NOT NULL,
		item_id TEXT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
		amount_minor_units INTEGER NOT NULL,
		currency_code TEXT NOT NULL,
		in_stock BOOLEAN NOT NULL,
		checked_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbox_event (
		id TEXT PRIMARY KEY NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		target_stream TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		next_retry_at TIMESTAMP
	);
	`
	_, err := dtb.ExecContext(ctx, migrationQuery)
	if err != nil {
		return fmt.Errorf("failed to execute migration query: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		s.log.Error("failed to close the database", "op", "sqlite.Close", "error", err)
		return fmt.Errorf("failed to close the database: %w", err)
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB is a getter for database handler.
func (s *Store) DB() *sql.DB {
	return s.db
}

func placeholder(int) string { return "?" }

func (s *Store) CreateItem(ctx context.Context, url string) (*models.Item, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, url, status, created_at, updated_at)
		VALUES (?, ?, 'pending', ?, ?)
		ON CONFLICT (url) DO NOTHING`, uuid.New(), url, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	item, err := database.ScanItem(s.db.QueryRowContext(ctx, `SELECT `+database.ItemColumns+` FROM items WHERE url = ?`, url))
	if err != nil {
		return nil, fmt.Errorf("failed to read created item: %w", err)
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := database.ScanItem(s.db.QueryRowContext(ctx, `SELECT `+database.ItemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (s *Store) ListItems(ctx context.Context, status models.ItemStatus, limit int) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+database.ItemColumns+` FROM items
		WHERE (? = '' OR status = ?)
		ORDER BY updated_at DESC
		LIMIT ?`, string(status), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := database.ScanItem(rows)
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

func (s *Store) NextPendingItem(ctx context.Context) (*models.Item, error) {
	item, err := database.ScanItem(s.db.QueryRowContext(ctx, `SELECT `+database.ItemColumns+` FROM items
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next pending item: %w", err)
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, u models.ItemUpdate) (*models.Item, error) {
	if u.Empty() {
		return s.GetItem(ctx, id)
	}

	query, args, err := database.BuildItemUpdate(u, id, s.now(), placeholder)
	if err != nil {
		return nil, err
	}

	item, err := database.ScanItem(s.db.QueryRowContext(ctx, query+` RETURNING `+database.ItemColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

func (s *Store) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) (*models.PriceHistoryEntry, error) {
	e := database.NewPriceHistoryEntry(entry)
	_, err := s.db.ExecContext(ctx, `INSERT INTO price_history (`+database.PriceHistoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ItemID, e.AmountMinorUnits, e.CurrencyCode, e.InStock, e.CheckedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert price history: %w", err)
	}
	return e, nil
}

func (s *Store) PriceHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]*models.PriceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+database.PriceHistoryColumns+` FROM price_history
		WHERE item_id = ?
		ORDER BY checked_at DESC
		LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.PriceHistoryEntry, 0)
	for rows.Next() {
		entry, err := database.ScanPriceHistory(rows)
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

func (s *Store) ResetForRecheck(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET status = 'pending', updated_at = ?
		WHERE status IN ('processed', 'failed')`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset items: %w", err)
	}
	return res.RowsAffected()
}
