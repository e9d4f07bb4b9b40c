package sites

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

const (
	mangoSizeButton = "button[data-testid='pdp.sizeSelector.button']"
	mangoSizeModal  = "[data-testid='pdp.sizeSelector.sizesList']"
)

// mango opens the size modal, reads it and closes it again.
type mango struct {
	*extractor.Generic
	sizes []models.Size
}

func newMango(in extractor.Input) extractor.Extractor {
	return &mango{Generic: extractor.NewGeneric(in)}
}

var mangoSizes = sizeFlow{
	actions: []extractor.Action{
		extractor.Click(mangoSizeButton).Within(5 * time.Second),
		extractor.WaitVisible(mangoSizeModal).Within(8 * time.Second),
		extractor.Read("sizes"),
		extractor.Click("[data-testid='modal.close']").Within(2 * time.Second).AsOptional(),
	},
	snapshot:  "sizes",
	parse:     parseMangoSizes,
	addToCart: []string{"button[data-testid='pdp.addToBag']", "button#addToBag"},
}

func (m *mango) Extract(ctx context.Context) (*models.ScrapedProduct, error) {
	sizes, err := mangoSizes.run(ctx, m.Generic)
	if err != nil {
		return nil, err
	}
	m.sizes = sizes
	return extractor.Assemble(m, extractor.Options{RequireCore: true})
}

func parseMangoSizes(doc *goquery.Document) []models.Size {
	var sizes []models.Size
	doc.Find(mangoSizeModal + " li").Each(func(_ int, s *goquery.Selection) {
		button := s.Find("button").First()
		name := extractor.CleanText(button.Find("span").First().Text())
		if name == "" {
			name = extractor.CleanText(s.Text())
		}
		text := strings.ToLower(extractor.CleanText(s.Text()))
		soldOut := strings.Contains(text, "notify me") || strings.Contains(text, "avísame") || strings.Contains(text, "benachrichtigen")
		sizes = append(sizes, models.Size{Name: name, InStock: !soldOut && extractor.OptionAvailable(button)})
	})
	return sizes
}

func (m *mango) Name() string {
	if name := extractor.FirstText(m.Doc(), "h1[data-testid='pdp.productInfo.title']", "h1.product-name"); name != "" {
		return name
	}
	return m.Generic.Name()
}

func (m *mango) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(m.Doc(), "[data-testid='pdp.productInfo.price']", ".product-prices", "span.sale"); p != nil {
		return p
	}
	return m.Generic.Price()
}

func (m *mango) Sizes() []models.Size { return m.sizes }

func (m *mango) Colors() []models.Color {
	var colors []models.Color
	m.Doc().Find("[data-testid='pdp.colorSelector'] a, .colors-info a").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("aria-label")
		swatch, _ := extractor.ResolveURL(m.URL(), extractor.ImageSource(s.Find("img").First()))
		colors = append(colors, models.Color{Name: name, SwatchURL: swatch})
	})
	if len(colors) == 0 {
		return m.Generic.Colors()
	}
	return colors
}
