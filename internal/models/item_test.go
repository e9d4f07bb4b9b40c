package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemUpdate_Assignments(t *testing.T) {
	status := StatusProcessed
	noError := ""
	inStock := true
	checked := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	u := ItemUpdate{
		Status:         &status,
		Price:          &PriceInfo{AmountMinorUnits: 4550, CurrencyCode: "EUR"},
		Sizes:          []Size{{Name: "M", InStock: true}},
		InStock:        &inStock,
		LastCheckedAt:  &checked,
		LastCheckError: &noError,
	}

	got, err := u.Assignments()
	require.NoError(t, err)

	columns := make([]string, 0, len(got))
	for _, a := range got {
		columns = append(columns, a.Column)
	}
	assert.Equal(t, []string{"status", "price_amount", "currency", "sizes", "in_stock", "last_checked_at", "last_check_error"}, columns)
	assert.Equal(t, `[{"name":"M","in_stock":true}]`, got[3].Value)
	assert.Nil(t, got[6].Value, "empty error message clears the column")
}

func TestItemUpdate_ClearPrice(t *testing.T) {
	u := ItemUpdate{ClearPrice: true}
	assert.False(t, u.Empty())

	got, err := u.Assignments()
	require.NoError(t, err)
	assert.Equal(t, []Assignment{{"price_amount", nil}, {"currency", nil}}, got)

	item := &Item{Price: &PriceInfo{AmountMinorUnits: 999, CurrencyCode: "USD"}}
	u.ApplyTo(item)
	assert.Nil(t, item.Price)

	// an explicit price wins over the clear flag
	u.Price = &PriceInfo{AmountMinorUnits: 500, CurrencyCode: "EUR"}
	got, err = u.Assignments()
	require.NoError(t, err)
	assert.Equal(t, []Assignment{{"price_amount", int64(500)}, {"currency", "EUR"}}, got)
}

func TestItemUpdate_EmptyAndApply(t *testing.T) {
	assert.True(t, ItemUpdate{}.Empty())

	name := "Linen Shirt"
	msg := "blocked"
	item := &Item{Name: "old", Images: []string{"a"}}
	u := ItemUpdate{Name: &name, LastCheckError: &msg}

	assert.False(t, u.Empty())
	u.ApplyTo(item)

	assert.Equal(t, "Linen Shirt", item.Name)
	assert.Equal(t, "blocked", item.LastCheckError)
	assert.Equal(t, []string{"a"}, item.Images, "unset fields stay untouched")
}

func TestPriceInfo_String(t *testing.T) {
	assert.Equal(t, "45.50 EUR", PriceInfo{AmountMinorUnits: 4550, CurrencyCode: "EUR"}.String())
	assert.Equal(t, "0.07 USD", PriceInfo{AmountMinorUnits: 7, CurrencyCode: "USD"}.String())
}

func TestScrapedProduct_Validate(t *testing.T) {
	p := NewScrapedProduct()
	assert.Len(t, p.Validate(), 2)

	p.Name = "Tee"
	p.Images = append(p.Images, PlaceholderImage)
	assert.Empty(t, p.Validate())
	assert.False(t, p.HasPrice())
}
