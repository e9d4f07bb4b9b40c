package sites

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/stock"
)

// hm reads H&M pages. The product schema carries name, price and images; the
// size grid is server rendered with sold out entries flagged by aria-disabled.
type hm struct {
	*extractor.Generic
}

func newHM(in extractor.Input) extractor.Extractor {
	return &hm{Generic: extractor.NewGeneric(in)}
}

func (h *hm) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(h, extractor.Options{RequireCore: true})
}

func (h *hm) Name() string {
	if s := h.Structured(); s != nil && s.Name != "" {
		return s.Name
	}
	return extractor.FirstText(h.Doc(), "h1.product-item-headline", "section.product-name-price h1", "h1")
}

func (h *hm) Price() *models.PriceInfo {
	if s := h.Structured(); s != nil && s.Price != nil {
		return s.Price
	}
	return extractor.PriceFromSelectors(h.Doc(),
		"[data-testid='red-price']",
		"[data-testid='white-price']",
		".product-item-price .price-value",
		"#product-price",
	)
}

func (h *hm) Sizes() []models.Size {
	var sizes []models.Size
	h.Doc().Find("[data-testid='size-selector'] li, .product-sizes .item, ul[aria-labelledby*='size'] li").Each(func(_ int, s *goquery.Selection) {
		control := s.Find("input, button, [role='radio']").First()
		if control.Length() == 0 {
			control = s
		}
		name := extractor.CleanText(s.Find("label, span").First().Text())
		if name == "" {
			name = extractor.CleanText(s.Text())
		}
		name, soldOut := stripHMStockNote(name)
		sizes = append(sizes, models.Size{Name: name, InStock: !soldOut && extractor.OptionAvailable(control)})
	})
	if len(sizes) == 0 {
		return h.Generic.Sizes()
	}
	return sizes
}

func (h *hm) Colors() []models.Color {
	var colors []models.Color
	h.Doc().Find("[data-testid='color-selector'] a, .product-colors .list-item a").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("title")
		if name == "" {
			name, _ = s.Attr("aria-label")
		}
		swatch, _ := extractor.ResolveURL(h.URL(), extractor.ImageSource(s.Find("img").First()))
		colors = append(colors, models.Color{Name: name, SwatchURL: swatch})
	})
	if len(colors) == 0 {
		return h.Generic.Colors()
	}
	return colors
}

func (h *hm) Images() []string {
	raws := extractor.ImagesFrom(h.Doc(), "[data-testid='grid-gallery'] img", ".product-detail-main-image-container img", "figure.pdp-image img")
	if s := h.Structured(); s != nil {
		raws = append(append([]string{}, s.Images...), raws...)
	}
	return extractor.ResolveImages(h.URL(), raws...)
}

func (h *hm) Stock(sizes []models.Size) (bool, bool) {
	s := h.Structured()
	if s != nil && s.Availability != stock.Unknown {
		return stock.Infer(sizes, stock.Signals{Structured: s.Availability}), true
	}
	return h.ResolveStock(sizes, h.AvailabilityText(), true)
}

func stripHMStockNote(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, note := range []string{"sold out", "ausverkauft", "few pieces left", "notify me"} {
		if i := strings.Index(lower, note); i > 0 {
			return strings.TrimSpace(name[:i]), note == "sold out" || note == "ausverkauft" || note == "notify me"
		}
	}
	return name, false
}
