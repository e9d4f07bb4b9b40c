package sites

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

const (
	lululemonSwatchGrid = "[data-testid='color-swatches'], .color-swatches"
	lululemonSizeTiles  = "[data-testid='size-selector'], .size-selector"
)

var lululemonAddToBag = []string{"button[data-testid='add-to-bag']", "button.add-to-bag"}

// lululemon hydrates the color swatch grid client-side; sizes and colors are
// read from the same post-hydration snapshot.
type lululemon struct {
	*extractor.Generic
	sizes  []models.Size
	colors []models.Color
}

func newLululemon(in extractor.Input) extractor.Extractor {
	return &lululemon{Generic: extractor.NewGeneric(in)}
}

func (l *lululemon) Extract(ctx context.Context) (*models.ScrapedProduct, error) {
	flow := sizeFlow{
		actions: []extractor.Action{
			extractor.WaitVisible(lululemonSwatchGrid).Within(10 * time.Second),
			extractor.WaitVisible(lululemonSizeTiles).Within(5 * time.Second).AsOptional(),
			extractor.Read("hydrated"),
		},
		snapshot: "hydrated",
		parse: func(doc *goquery.Document) []models.Size {
			l.colors = parseLululemonColors(doc)
			return parseLululemonSizes(doc)
		},
		addToCart: lululemonAddToBag,
	}

	sizes, err := flow.run(ctx, l.Generic)
	if err != nil {
		return nil, err
	}
	l.sizes = sizes
	return extractor.Assemble(l, extractor.Options{RequireCore: true})
}

func parseLululemonSizes(doc *goquery.Document) []models.Size {
	var sizes []models.Size
	doc.Find(lululemonSizeTiles).Find("button, [role='radio']").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("data-size")
		if name == "" {
			name = s.Text()
		}
		sizes = append(sizes, models.Size{Name: name, InStock: extractor.OptionAvailable(s)})
	})
	return sizes
}

func parseLululemonColors(doc *goquery.Document) []models.Color {
	var colors []models.Color
	doc.Find(lululemonSwatchGrid).Find("[role='radio'], button, a").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("aria-label")
		if name == "" {
			name, _ = s.Attr("title")
		}
		colors = append(colors, models.Color{Name: name, SwatchURL: extractor.ImageSource(s.Find("img").First())})
	})
	return colors
}

func (l *lululemon) Name() string {
	if name := extractor.FirstText(l.Doc(), "h1[data-testid='product-title']", "h1.pdp-title"); name != "" {
		return name
	}
	return l.Generic.Name()
}

func (l *lululemon) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(l.Doc(), "[data-testid='price'] .price", "span.price"); p != nil {
		return p
	}
	return l.Generic.Price()
}

func (l *lululemon) Sizes() []models.Size { return l.sizes }

func (l *lululemon) Colors() []models.Color {
	colors := make([]models.Color, 0, len(l.colors))
	for _, c := range l.colors {
		c.SwatchURL, _ = extractor.ResolveURL(l.URL(), c.SwatchURL)
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		return l.Generic.Colors()
	}
	return colors
}

func (l *lululemon) Stock(sizes []models.Size) (bool, bool) {
	text := extractor.TextOf(l.Doc(), "[data-testid='sold-out']", ".sold-out-message")
	return l.ResolveStock(sizes, text, true)
}
