package sites

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

var ebayDomains = []string{"ebay.com", "ebay.de", "ebay.co.uk", "ebay.fr", "ebay.it"}

type ebay struct {
	*extractor.Generic
}

func newEbay(in extractor.Input) extractor.Extractor {
	return &ebay{Generic: extractor.NewGeneric(in)}
}

func (e *ebay) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(e, extractor.Options{RequireCore: true})
}

func (e *ebay) Name() string {
	if name := extractor.FirstText(e.Doc(), "h1.x-item-title__mainTitle", "#itemTitle"); name != "" {
		return strings.TrimPrefix(name, "Details about ")
	}
	return e.Generic.Name()
}

func (e *ebay) Price() *models.PriceInfo {
	if p := extractor.PriceFromSelectors(e.Doc(),
		".x-price-primary",
		"#prcIsum",
		"#mm-saleDscPrc",
		".x-bin-price__content",
	); p != nil {
		return p
	}
	return e.Generic.Price()
}

// Sizes reads the multi-variation dropdown; eBay marks sold out values in
// the option text.
func (e *ebay) Sizes() []models.Size {
	var sizes []models.Size
	e.Doc().Find("select.x-msku__select-box").Each(func(_ int, sel *goquery.Selection) {
		label, _ := sel.Attr("selectboxlabel")
		if label == "" {
			label, _ = sel.Attr("aria-label")
		}
		if !strings.Contains(strings.ToLower(label), "size") && !strings.Contains(strings.ToLower(label), "größe") {
			return
		}
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value, _ := opt.Attr("value")
			if value == "" || value == "-1" {
				return
			}
			text := extractor.CleanText(opt.Text())
			name, soldOut := stripSoldOut(text)
			_, disabled := opt.Attr("disabled")
			sizes = append(sizes, models.Size{Name: name, InStock: !soldOut && !disabled})
		})
	})
	return sizes
}

func (e *ebay) Images() []string {
	raws := extractor.ImagesFrom(e.Doc(), ".ux-image-carousel-item img", "#icImg")
	if len(raws) == 0 {
		return e.Generic.Images()
	}
	return extractor.ResolveImages(e.URL(), raws...)
}

func (e *ebay) Stock(sizes []models.Size) (bool, bool) {
	text := extractor.TextOf(e.Doc(), "#qtySubTxt", ".d-quantity__availability", ".ux-layout-section--availability", ".d-statusmessage")
	return e.ResolveStock(sizes, text, true)
}

func (e *ebay) Description() string {
	return extractor.FirstText(e.Doc(), ".x-item-description", "#viTabs_0_is")
}

func stripSoldOut(text string) (string, bool) {
	for _, marker := range []string{"[out of stock]", "(out of stock)", "- out of stock", "[ausverkauft]", "(ausverkauft)"} {
		lower := strings.ToLower(text)
		if i := strings.Index(lower, marker); i >= 0 {
			return strings.TrimSpace(text[:i]), true
		}
	}
	return text, false
}
