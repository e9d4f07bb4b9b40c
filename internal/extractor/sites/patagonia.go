package sites

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

type patagonia struct {
	*extractor.Generic
}

func newPatagonia(in extractor.Input) extractor.Extractor {
	return &patagonia{Generic: extractor.NewGeneric(in)}
}

func (p *patagonia) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(p, extractor.Options{RequireCore: true})
}

func (p *patagonia) Price() *models.PriceInfo {
	if price := extractor.PriceFromSelectors(p.Doc(),
		".prices .sales .value",
		".product-price .sales",
		"[itemprop='price']",
	); price != nil {
		return price
	}
	return p.Generic.Price()
}

// Sizes reads the swatch buttons; the platform marks unsellable values with
// an "unselectable" class rather than disabling the button.
func (p *patagonia) Sizes() []models.Size {
	var sizes []models.Size
	p.Doc().Find("[data-attr='size'] [data-attr-value], .attribute__swatches--size button").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("data-attr-value")
		if name == "" {
			name = s.Text()
		}
		available := extractor.OptionAvailable(s) && !s.HasClass("unselectable")
		sizes = append(sizes, models.Size{Name: name, InStock: available})
	})
	if len(sizes) == 0 {
		return p.Generic.Sizes()
	}
	return sizes
}

func (p *patagonia) Colors() []models.Color {
	var colors []models.Color
	p.Doc().Find("[data-attr='color'] [data-attr-value]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("data-caption")
		if name == "" {
			name, _ = s.Attr("aria-label")
		}
		if name == "" {
			name, _ = s.Attr("data-attr-value")
		}
		swatch, _ := extractor.ResolveURL(p.URL(), extractor.ImageSource(s.Find("img").First()))
		colors = append(colors, models.Color{Name: name, SwatchURL: swatch})
	})
	if len(colors) == 0 {
		return p.Generic.Colors()
	}
	return colors
}

func (p *patagonia) Images() []string {
	raws := extractor.ImagesFrom(p.Doc(), ".pdp-hero-gallery img", ".product-images__carousel img")
	return extractor.ResolveImages(p.URL(), append(p.Generic.Images(), raws...)...)
}
