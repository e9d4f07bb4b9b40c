package sites

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

const uniqloSizeChips = "[data-test='size-chip-group'], .size-chip-group"

// uniqlo renders the size chips after hydration; nothing to click.
type uniqlo struct {
	*extractor.Generic
	sizes []models.Size
}

func newUniqlo(in extractor.Input) extractor.Extractor {
	return &uniqlo{Generic: extractor.NewGeneric(in)}
}

var uniqloSizes = sizeFlow{
	actions: []extractor.Action{
		extractor.WaitVisible(uniqloSizeChips).Within(10 * time.Second),
		extractor.Read("sizes"),
	},
	snapshot:  "sizes",
	parse:     parseUniqloSizes,
	addToCart: []string{"[data-test='add-to-cart-button']", "button#add-to-cart-button"},
}

func (u *uniqlo) Extract(ctx context.Context) (*models.ScrapedProduct, error) {
	sizes, err := uniqloSizes.run(ctx, u.Generic)
	if err != nil {
		return nil, err
	}
	u.sizes = sizes
	return extractor.Assemble(u, extractor.Options{RequireCore: true})
}

func parseUniqloSizes(doc *goquery.Document) []models.Size {
	var sizes []models.Size
	doc.Find(uniqloSizeChips).Find("input, button").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("aria-label")
		if name == "" {
			name, _ = s.Attr("value")
		}
		if name == "" {
			name = s.Text()
		}
		available := extractor.OptionAvailable(s) && !s.Parent().HasClass("strike")
		sizes = append(sizes, models.Size{Name: name, InStock: available})
	})
	return sizes
}

func (u *uniqlo) Name() string {
	if name := extractor.FirstText(u.Doc(), "h1[data-test='product-name']", "h1.fr-ec-display"); name != "" {
		return name
	}
	return u.Generic.Name()
}

func (u *uniqlo) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(u.Doc(), "[data-test='product-price'] .fr-ec-price-text", ".fr-ec-price-text--large", ".fr-ec-price"); p != nil {
		return p
	}
	return u.Generic.Price()
}

func (u *uniqlo) Sizes() []models.Size { return u.sizes }

func (u *uniqlo) Colors() []models.Color {
	var colors []models.Color
	u.Doc().Find("[data-test='color-chip-group'] input, .color-chip-group input").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("aria-label")
		swatch, _ := extractor.ResolveURL(u.URL(), extractor.ImageSource(s.Parent().Find("img").First()))
		colors = append(colors, models.Color{Name: name, SwatchURL: swatch})
	})
	if len(colors) == 0 {
		return u.Generic.Colors()
	}
	return colors
}

func (u *uniqlo) Images() []string {
	raws := extractor.ImagesFrom(u.Doc(), ".media-gallery img", "[data-test='product-image'] img")
	return extractor.ResolveImages(u.URL(), append(raws, u.Generic.Images()...)...)
}
