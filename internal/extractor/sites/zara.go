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
	zaraAddButton = "button[data-qa-action='add-to-cart']"
	zaraSizeList  = ".size-selector-sizes"
)

// zara hides the size list until the add button opens the size sheet.
type zara struct {
	*extractor.Generic
	sizes []models.Size
}

func newZara(in extractor.Input) extractor.Extractor {
	return &zara{Generic: extractor.NewGeneric(in)}
}

var zaraSizes = sizeFlow{
	actions: []extractor.Action{
		extractor.Click(zaraAddButton).Within(5 * time.Second),
		extractor.WaitVisible(zaraSizeList).Within(8 * time.Second),
		extractor.Read("sizes"),
		extractor.Press("Escape").AsOptional(),
	},
	snapshot:  "sizes",
	parse:     parseZaraSizes,
	addToCart: []string{zaraAddButton},
}

func (z *zara) Extract(ctx context.Context) (*models.ScrapedProduct, error) {
	sizes, err := zaraSizes.run(ctx, z.Generic)
	if err != nil {
		return nil, err
	}
	z.sizes = sizes
	return extractor.Assemble(z, extractor.Options{RequireCore: true})
}

func parseZaraSizes(doc *goquery.Document) []models.Size {
	var sizes []models.Size
	doc.Find(zaraSizeList + " li").Each(func(_ int, s *goquery.Selection) {
		name := extractor.CleanText(s.Find(".size-selector-sizes-size__label").First().Text())
		if name == "" {
			name = extractor.CleanText(s.Text())
		}
		class, _ := s.Attr("class")
		action, _ := s.Find("button").Attr("data-qa-action")
		soldOut := strings.Contains(class, "--disabled") ||
			strings.Contains(class, "--out-of-stock") ||
			action == "size-out-of-stock"
		sizes = append(sizes, models.Size{Name: name, InStock: !soldOut})
	})
	return sizes
}

func (z *zara) Name() string {
	if name := extractor.FirstText(z.Doc(), "h1.product-detail-info__header-name", ".product-detail-info__name"); name != "" {
		return name
	}
	return z.Generic.Name()
}

func (z *zara) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(z.Doc(), ".product-detail-info__price", ".price__amount"); p != nil {
		return p
	}
	return z.Generic.Price()
}

func (z *zara) Sizes() []models.Size { return z.sizes }

func (z *zara) Colors() []models.Color {
	var colors []models.Color
	z.Doc().Find(".product-detail-color-selector__color-button").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("aria-label")
		if name == "" {
			name = s.Find(".screen-reader-text").Text()
		}
		colors = append(colors, models.Color{Name: name})
	})
	if len(colors) == 0 {
		if name := extractor.FirstText(z.Doc(), ".product-color-extended-name", ".product-detail-selected-color"); name != "" {
			colors = append(colors, models.Color{Name: strings.SplitN(name, "|", 2)[0]})
		}
	}
	return colors
}

func (z *zara) Images() []string {
	raws := extractor.ImagesFrom(z.Doc(), "picture.media-image img", ".product-detail-images img")
	return extractor.ResolveImages(z.URL(), append(raws, z.Generic.Images()...)...)
}

func (z *zara) Description() string {
	if desc := extractor.FirstText(z.Doc(), ".expandable-text__inner-content", ".product-detail-description"); desc != "" {
		return desc
	}
	return z.Generic.Description()
}
