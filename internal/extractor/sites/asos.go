package sites

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

const asosVariantSelect = "select[data-testid='variant-selector'], select#variantSelector"

// asos injects its product schema and the size dropdown client-side, so the
// structured data is read from the rendered page.
type asos struct {
	*extractor.Generic
	sizes []models.Size
}

func newASOS(in extractor.Input) extractor.Extractor {
	return &asos{Generic: extractor.NewGeneric(in)}
}

var asosSizes = sizeFlow{
	actions: []extractor.Action{
		extractor.WaitVisible(asosVariantSelect).Within(10 * time.Second),
		extractor.Read("variants"),
	},
	snapshot:  "variants",
	parse:     parseASOSSizes,
	addToCart: []string{"button[data-testid='add-button']", "button#product-add-button"},
}

func (a *asos) Extract(ctx context.Context) (*models.ScrapedProduct, error) {
	sizes, err := asosSizes.run(ctx, a.Generic)
	if err != nil {
		return nil, err
	}
	a.sizes = sizes
	return extractor.Assemble(a, extractor.Options{RequireCore: true})
}

func parseASOSSizes(doc *goquery.Document) []models.Size {
	var sizes []models.Size
	doc.Find(asosVariantSelect).Find("option").Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		if value == "" {
			return
		}
		name, soldOut := stripSoldOut(extractor.CleanText(s.Text()))
		_, disabled := s.Attr("disabled")
		sizes = append(sizes, models.Size{Name: name, InStock: !soldOut && !disabled})
	})
	return sizes
}

func (a *asos) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(a.Doc(), "[data-testid='current-price']", "[data-testid='price-screenreader-only-text']"); p != nil {
		return p
	}
	return a.Generic.Price()
}

func (a *asos) Sizes() []models.Size { return a.sizes }

func (a *asos) Colors() []models.Color {
	if name := extractor.FirstText(a.Doc(), "[data-testid='product-colour'] p", "[data-testid='product-colour']"); name != "" {
		return []models.Color{{Name: name}}
	}
	return a.Generic.Colors()
}

func (a *asos) Images() []string {
	raws := extractor.ImagesFrom(a.Doc(), "[data-testid='gallery-image'] img", ".gallery-image img")
	return extractor.ResolveImages(a.URL(), append(a.Generic.Images(), raws...)...)
}
