package sites

import (
	"context"
	"strings"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
	"github.com/maltedev/product-extractor/internal/stock"
)

// nike reads the product object from the Next.js page payload and falls back
// to the DOM when the payload is missing or reshaped.
type nike struct {
	*extractor.Generic
	product map[string]any
}

func newNike(in extractor.Input) extractor.Extractor {
	n := &nike{Generic: extractor.NewGeneric(in)}
	if data, ok := extractor.NextData(n.Doc()); ok {
		n.product, _ = extractor.FindObject(data, "title", "prices")
		if n.product == nil {
			n.product, _ = extractor.FindObject(data, "title", "currentPrice")
		}
	}
	return n
}

func (n *nike) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(n, extractor.Options{RequireCore: true})
}

func (n *nike) Name() string {
	if n.product != nil {
		title := extractor.String(n.product, "title")
		if subtitle := extractor.String(n.product, "subtitle"); subtitle != "" {
			return title + " " + subtitle
		}
		return title
	}
	if name := extractor.FirstText(n.Doc(), "#pdp_product_title", "h1[data-testid='product_title']"); name != "" {
		return name
	}
	return n.Generic.Name()
}

func (n *nike) Price() *models.PriceInfo {
	if n.product != nil {
		prices := n.product
		if nested, ok := n.product["prices"].(map[string]any); ok {
			prices = nested
		}
		currency := extractor.String(prices, "currency")
		if amount := extractor.Number(prices, "currentPrice"); amount != "" {
			if p, ok := price.FromAmount(amount, currency); ok && p.AmountMinorUnits > 0 {
				return &p
			}
		}
	}
	if p := extractor.PriceFromSelectors(n.Doc(), "[data-testid='currentPrice-container']", ".product-price.is--current-price"); p != nil {
		return p
	}
	return n.Generic.Price()
}

func (n *nike) Sizes() []models.Size {
	if n.product != nil {
		var sizes []models.Size
		for _, s := range extractor.Objects(n.product, "sizes") {
			name := extractor.String(s, "localizedLabel")
			if name == "" {
				name = extractor.String(s, "label")
			}
			sizes = append(sizes, models.Size{Name: name, InStock: nikeSizeAvailable(s)})
		}
		if len(sizes) > 0 {
			return sizes
		}
	}
	return extractor.SizesFrom(n.Doc(), "", "[data-testid='pdp-grid-selector-item'] label", "#buyTools input[name='skuAndSize'] + label")
}

func nikeSizeAvailable(s map[string]any) bool {
	if status := extractor.String(s, "status"); status != "" {
		return strings.EqualFold(status, "ACTIVE")
	}
	if available, ok := extractor.Bool(s, "available"); ok {
		return available
	}
	return stock.ParseAvailability(extractor.String(s, "availability")) == stock.InStock
}

func (n *nike) Colors() []models.Color {
	if n.product != nil {
		if color := extractor.String(n.product, "colorDescription"); color != "" {
			return []models.Color{{Name: color}}
		}
	}
	return n.Generic.Colors()
}

func (n *nike) Images() []string {
	var raws []string
	if n.product != nil {
		for _, img := range extractor.Objects(n.product, "contentImages") {
			if props, ok := extractor.Lookup(img, "properties", "squarish", "url"); ok {
				if u, ok := props.(string); ok {
					raws = append(raws, u)
				}
			}
		}
		for _, img := range extractor.Objects(n.product, "images") {
			if u := extractor.String(img, "url"); u != "" {
				raws = append(raws, u)
			}
		}
	}
	if len(raws) == 0 {
		return n.Generic.Images()
	}
	return extractor.ResolveImages(n.URL(), raws...)
}

func (n *nike) Description() string {
	if n.product != nil {
		if desc := extractor.String(n.product, "description"); desc != "" {
			return desc
		}
	}
	return n.Generic.Description()
}
