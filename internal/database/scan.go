package database

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/product-extractor/internal/models"
)

// ItemColumns is the select list ScanItem expects, shared by every store.
const ItemColumns = `id, url, status, name, price_amount, currency, sizes, colors, images,
	in_stock, description, last_checked_at, last_check_error, created_at, updated_at`

// PriceHistoryColumns is the select list ScanPriceHistory expects.
const PriceHistoryColumns = `id, item_id, amount_minor_units, currency_code, in_stock, checked_at`

// Scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

func ScanItem(row Scanner) (*models.Item, error) {
	var (
		item           models.Item
		status         string
		priceAmount    *int64
		currency       *string
		sizes          []byte
		colors         []byte
		images         []byte
		lastCheckError *string
	)

	err := row.Scan(
		&item.ID, &item.URL, &status, &item.Name, &priceAmount, &currency,
		&sizes, &colors, &images, &item.InStock, &item.Description,
		&item.LastCheckedAt, &lastCheckError, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = models.ItemStatus(status)
	if priceAmount != nil && currency != nil {
		item.Price = &models.PriceInfo{AmountMinorUnits: *priceAmount, CurrencyCode: *currency}
	}
	if lastCheckError != nil {
		item.LastCheckError = *lastCheckError
	}

	item.Sizes = make([]models.Size, 0)
	item.Colors = make([]models.Color, 0)
	item.Images = make([]string, 0)
	for _, field := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"sizes", sizes, &item.Sizes},
		{"colors", colors, &item.Colors},
		{"images", images, &item.Images},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", field.name, err)
		}
	}

	return &item, nil
}

func ScanPriceHistory(row Scanner) (*models.PriceHistoryEntry, error) {
	var entry models.PriceHistoryEntry
	err := row.Scan(&entry.ID, &entry.ItemID, &entry.AmountMinorUnits, &entry.CurrencyCode, &entry.InStock, &entry.CheckedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// BuildItemUpdate renders an UPDATE for the assignments of u. placeholder
// maps a 1-based argument index to the driver's bind syntax. The item ID is
// always the last argument.
func BuildItemUpdate(u models.ItemUpdate, id uuid.UUID, now time.Time, placeholder func(int) string) (string, []any, error) {
	assignments, err := u.Assignments()
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode update: %w", err)
	}

	sets := make([]string, 0, len(assignments)+1)
	args := make([]any, 0, len(assignments)+2)
	for _, a := range assignments {
		args = append(args, a.Value)
		sets = append(sets, fmt.Sprintf("%s = %s", a.Column, placeholder(len(args))))
	}
	args = append(args, now)
	sets = append(sets, "updated_at = "+placeholder(len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE items SET %s WHERE id = %s", strings.Join(sets, ", "), placeholder(len(args)))
	return query, args, nil
}

// PostgresPlaceholder renders $n.
func PostgresPlaceholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

// NewPriceHistoryEntry fills the ID and timestamp of an entry about to be
// inserted.
func NewPriceHistoryEntry(entry *models.PriceHistoryEntry) *models.PriceHistoryEntry {
	e := *entry
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CheckedAt.IsZero() {
		e.CheckedAt = time.Now().UTC()
	}
	return &e
}
