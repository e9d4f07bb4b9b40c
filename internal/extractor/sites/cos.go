package sites

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

// cos relies on the product schema for everything but the size buttons.
type cos struct {
	*extractor.Generic
}

func newCOS(in extractor.Input) extractor.Extractor {
	return &cos{Generic: extractor.NewGeneric(in)}
}

func (c *cos) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(c, extractor.Options{RequireCore: true})
}

func (c *cos) Price() *models.PriceInfo {
	if s := c.Structured(); s != nil && s.Price != nil {
		return s.Price
	}
	return extractor.PriceFromSelectors(c.Doc(), "#priceValue .price", ".productPrice .price", ".product-price")
}

func (c *cos) Sizes() []models.Size {
	var sizes []models.Size
	c.Doc().Find("#sizes button, .size-options button, [data-testid='size-selector'] button").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("data-value")
		if name == "" {
			name = s.Text()
		}
		sizes = append(sizes, models.Size{Name: name, InStock: extractor.OptionAvailable(s)})
	})
	if len(sizes) == 0 {
		return c.Generic.Sizes()
	}
	return sizes
}

func (c *cos) Colors() []models.Color {
	name := extractor.FirstText(c.Doc(), ".color-name", "[data-testid='selected-color']")
	if name == "" {
		return c.Generic.Colors()
	}
	return []models.Color{{Name: name}}
}
