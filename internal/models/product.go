package models

import (
	"fmt"
)

// PlaceholderImage is substituted when no product image could be discovered.
const PlaceholderImage = "https://placehold.co/600x600?text=No+Image"

// OneSizeLabel names the synthetic size used when a page exposes no size options.
const OneSizeLabel = "One Size"

type PriceInfo struct {
	AmountMinorUnits int64  `json:"amount_minor_units"`
	CurrencyCode     string `json:"currency_code"`
}

func (p PriceInfo) String() string {
	return fmt.Sprintf("%d.%02d %s", p.AmountMinorUnits/100, p.AmountMinorUnits%100, p.CurrencyCode)
}

type Size struct {
	Name    string `json:"name"`
	InStock bool   `json:"in_stock"`
}

type Color struct {
	Name      string `json:"name"`
	SwatchURL string `json:"swatch_url,omitempty"`
}

// ScrapedProduct is the canonical result of one extraction call.
type ScrapedProduct struct {
	Name        string     `json:"name"`
	Price       *PriceInfo `json:"price,omitempty"`
	Sizes       []Size     `json:"available_sizes"`
	Colors      []Color    `json:"available_colors"`
	Images      []string   `json:"images"`
	InStock     bool       `json:"in_stock"`
	Description string     `json:"description,omitempty"`
}

func NewScrapedProduct() *ScrapedProduct {
	return &ScrapedProduct{
		Sizes:  make([]Size, 0),
		Colors: make([]Color, 0),
		Images: make([]string, 0),
	}
}

// HasPrice reports whether a positive price was extracted.
func (p *ScrapedProduct) HasPrice() bool {
	return p.Price != nil && p.Price.AmountMinorUnits > 0
}

func (p *ScrapedProduct) Validate() []string {
	var errors []string

	if p.Name == "" {
		errors = append(errors, "name is required")
	}

	if p.Price != nil && p.Price.CurrencyCode == "" {
		errors = append(errors, "price without currency")
	}

	if len(p.Images) == 0 {
		errors = append(errors, "at least one image is required")
	}

	return errors
}
