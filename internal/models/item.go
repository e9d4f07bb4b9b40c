package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusProcessed ItemStatus = "processed"
	StatusFailed    ItemStatus = "failed"
	StatusLinkDead  ItemStatus = "link_dead"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusFailed, StatusLinkDead:
		return true
	}
	return false
}

// Item is a tracked product URL together with the data of its most recent
// successful check.
type Item struct {
	ID             uuid.UUID  `json:"id"`
	URL            string     `json:"url"`
	Status         ItemStatus `json:"status"`
	Name           string     `json:"name"`
	Price          *PriceInfo `json:"price,omitempty"`
	Sizes          []Size     `json:"available_sizes"`
	Colors         []Color    `json:"available_colors"`
	Images         []string   `json:"images"`
	InStock        bool       `json:"in_stock"`
	Description    string     `json:"description,omitempty"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	LastCheckError string     `json:"last_check_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PriceHistoryEntry is one append-only observation of an item's price.
type PriceHistoryEntry struct {
	ID               uuid.UUID `json:"id"`
	ItemID           uuid.UUID `json:"item_id"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	CurrencyCode     string    `json:"currency_code"`
	InStock          bool      `json:"in_stock"`
	CheckedAt        time.Time `json:"checked_at"`
}

// ItemUpdate carries a partial update. Nil fields are left untouched.
type ItemUpdate struct {
	Status         *ItemStatus
	Name           *string
	Price          *PriceInfo
	// ClearPrice nulls the stored price when Price is nil.
	ClearPrice     bool
	Sizes          []Size
	Colors         []Color
	Images         []string
	InStock        *bool
	Description    *string
	LastCheckedAt  *time.Time
	LastCheckError *string
}

// Assignment is a single column write produced from an ItemUpdate.
type Assignment struct {
	Column string
	Value  any
}

// Assignments flattens the update into column writes in a fixed order so that
// generated SQL is stable. Slices are JSON encoded; an empty LastCheckError
// clears the column.
func (u ItemUpdate) Assignments() ([]Assignment, error) {
	var out []Assignment

	if u.Status != nil {
		out = append(out, Assignment{"status", string(*u.Status)})
	}
	if u.Name != nil {
		out = append(out, Assignment{"name", *u.Name})
	}
	switch {
	case u.Price != nil:
		out = append(out,
			Assignment{"price_amount", u.Price.AmountMinorUnits},
			Assignment{"currency", u.Price.CurrencyCode},
		)
	case u.ClearPrice:
		out = append(out,
			Assignment{"price_amount", nil},
			Assignment{"currency", nil},
		)
	}
	for _, field := range []struct {
		column string
		value  any
		set    bool
	}{
		{"sizes", u.Sizes, u.Sizes != nil},
		{"colors", u.Colors, u.Colors != nil},
		{"images", u.Images, u.Images != nil},
	} {
		if !field.set {
			continue
		}
		raw, err := json.Marshal(field.value)
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{field.column, string(raw)})
	}
	if u.InStock != nil {
		out = append(out, Assignment{"in_stock", *u.InStock})
	}
	if u.Description != nil {
		out = append(out, Assignment{"description", *u.Description})
	}
	if u.LastCheckedAt != nil {
		out = append(out, Assignment{"last_checked_at", *u.LastCheckedAt})
	}
	if u.LastCheckError != nil {
		var v any
		if *u.LastCheckError != "" {
			v = *u.LastCheckError
		}
		out = append(out, Assignment{"last_check_error", v})
	}

	return out, nil
}

// Empty reports whether the update would write nothing.
func (u ItemUpdate) Empty() bool {
	return u.Status == nil && u.Name == nil && u.Price == nil && !u.ClearPrice && u.Sizes == nil &&
		u.Colors == nil && u.Images == nil && u.InStock == nil && u.Description == nil &&
		u.LastCheckedAt == nil && u.LastCheckError == nil
}

// ApplyTo mirrors the update onto an in-memory item.
func (u ItemUpdate) ApplyTo(item *Item) {
	if u.Status != nil {
		item.Status = *u.Status
	}
	if u.Name != nil {
		item.Name = *u.Name
	}
	if u.Price != nil {
		p := *u.Price
		item.Price = &p
	} else if u.ClearPrice {
		item.Price = nil
	}
	if u.Sizes != nil {
		item.Sizes = u.Sizes
	}
	if u.Colors != nil {
		item.Colors = u.Colors
	}
	if u.Images != nil {
		item.Images = u.Images
	}
	if u.InStock != nil {
		item.InStock = *u.InStock
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.LastCheckedAt != nil {
		t := *u.LastCheckedAt
		item.LastCheckedAt = &t
	}
	if u.LastCheckError != nil {
		item.LastCheckError = *u.LastCheckError
	}
}
