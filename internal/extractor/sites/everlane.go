package sites

import (
	"context"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
)

type everlane struct {
	*extractor.Generic
	product map[string]any
}

func newEverlane(in extractor.Input) extractor.Extractor {
	e := &everlane{Generic: extractor.NewGeneric(in)}
	if data, ok := extractor.NextData(e.Doc()); ok {
		e.product, _ = extractor.FindObject(data, "displayName", "variants")
	}
	return e
}

func (e *everlane) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(e, extractor.Options{RequireCore: true})
}

func (e *everlane) Name() string {
	if e.product != nil {
		return extractor.String(e.product, "displayName")
	}
	return e.Generic.Name()
}

func (e *everlane) Price() *models.PriceInfo {
	if e.product != nil {
		if amount := extractor.Number(e.product, "price"); amount != "" {
			if p, ok := price.FromAmount(amount, "USD"); ok && p.AmountMinorUnits > 0 {
				return &p
			}
		}
	}
	return e.Generic.Price()
}

// Sizes reads the variants; each carries a size and a stock count.
func (e *everlane) Sizes() []models.Size {
	if e.product == nil {
		return e.Generic.Sizes()
	}
	var sizes []models.Size
	for _, v := range extractor.Objects(e.product, "variants") {
		name := extractor.String(v, "size")
		if name == "" {
			continue
		}
		sizes = append(sizes, models.Size{Name: name, InStock: everlaneInStock(v)})
	}
	return sizes
}

func everlaneInStock(v map[string]any) bool {
	if available, ok := extractor.Bool(v, "available"); ok {
		return available
	}
	if count, ok := v["inventoryCount"].(float64); ok {
		return count > 0
	}
	return extractor.String(v, "orderableState") == "shippable"
}

func (e *everlane) Colors() []models.Color {
	if e.product != nil {
		if color, ok := e.product["color"].(map[string]any); ok {
			swatch, _ := extractor.ResolveURL(e.URL(), extractor.String(color, "swatchUrl"))
			return []models.Color{{Name: extractor.String(color, "name"), SwatchURL: swatch}}
		}
	}
	return e.Generic.Colors()
}

func (e *everlane) Images() []string {
	if e.product == nil {
		return e.Generic.Images()
	}
	var raws []string
	for _, album := range extractor.Objects(e.product, "albums") {
		for _, file := range extractor.Objects(album, "files") {
			raws = append(raws, extractor.String(file, "src"))
		}
	}
	for _, img := range extractor.Objects(e.product, "images") {
		raws = append(raws, extractor.String(img, "src"))
	}
	if len(raws) == 0 {
		return e.Generic.Images()
	}
	return extractor.ResolveImages(e.URL(), raws...)
}

func (e *everlane) Description() string {
	if e.product != nil {
		if desc := extractor.String(e.product, "description"); desc != "" {
			return desc
		}
	}
	return e.Generic.Description()
}
