package sites

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

// Etsy appends the price delta to variation options: "Large (US$ 52.00)".
var etsyOptionPrice = regexp.MustCompile(`\s*\([^)]*\d[^)]*\)\s*$`)

type etsy struct {
	*extractor.Generic
}

func newEtsy(in extractor.Input) extractor.Extractor {
	return &etsy{Generic: extractor.NewGeneric(in)}
}

func (e *etsy) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(e, extractor.Options{})
}

func (e *etsy) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(e.Doc(),
		"[data-buy-box-region='price'] .wt-text-title-larger",
		"[data-buy-box-region='price'] p",
		"[data-selector='price-only']",
	); p != nil {
		return p
	}
	return e.Generic.Price()
}

func (e *etsy) Sizes() []models.Size {
	var sizes []models.Size
	e.Doc().Find("[data-selector='listing-page-variation']").Each(func(_ int, group *goquery.Selection) {
		label := strings.ToLower(extractor.CleanText(group.Find("label").First().Text()))
		if !strings.Contains(label, "size") {
			return
		}
		group.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value, _ := opt.Attr("value")
			if value == "" {
				return
			}
			name := etsyOptionPrice.ReplaceAllString(extractor.CleanText(opt.Text()), "")
			name, soldOut := stripSoldOut(name)
			_, disabled := opt.Attr("disabled")
			sizes = append(sizes, models.Size{Name: name, InStock: !disabled && !soldOut})
		})
	})
	if len(sizes) == 0 {
		return e.Generic.Sizes()
	}
	return sizes
}

func (e *etsy) Images() []string {
	raws := extractor.ImagesFrom(e.Doc(), "[data-carousel-first-image] img", ".listing-page-image-carousel-component img", "ul.carousel-pane-list img")
	return extractor.ResolveImages(e.URL(), append(raws, e.Generic.Images()...)...)
}
