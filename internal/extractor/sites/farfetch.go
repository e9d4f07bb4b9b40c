package sites

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
)

// farfetch shows the original and discounted price in one block, e.g.
// "RRP: RUB 166,777 (-50%) RUB 83,389"; the normalizer picks the payable one.
type farfetch struct {
	*extractor.Generic
}

func newFarfetch(in extractor.Input) extractor.Extractor {
	return &farfetch{Generic: extractor.NewGeneric(in)}
}

func (f *farfetch) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(f, extractor.Options{RequireCore: true})
}

func (f *farfetch) Name() string {
	brand := extractor.FirstText(f.Doc(), "[data-testid='product-brand']", "[data-tstid='cardInfo-title']", "h1 a")
	desc := extractor.FirstText(f.Doc(), "[data-testid='product-short-description']", "[data-tstid='cardInfo-description']", "h1 p")
	switch {
	case brand != "" && desc != "":
		return brand + " " + desc
	case brand != "" || desc != "":
		return brand + desc
	}
	return f.Generic.Name()
}

func (f *farfetch) Price() *models.PriceInfo {
	block := extractor.FirstText(f.Doc(),
		"[data-component='PriceLarge']",
		"[data-component='PriceBrief']",
		"[data-tstid='priceInfo-original']",
		"[data-testid='price']",
	)
	if block != "" {
		if p, ok := price.Parse(block); ok && p.AmountMinorUnits > 0 {
			return &p
		}
	}
	return f.Generic.Price()
}

func (f *farfetch) Sizes() []models.Size {
	var sizes []models.Size
	f.Doc().Find("[data-component='SizeSelectorOption'], [data-testid='sizeSelectorOption']").Each(func(_ int, s *goquery.Selection) {
		name := extractor.CleanText(s.Find("[data-component='SizeSelectorLabel']").First().Text())
		if name == "" {
			name = s.Text()
		}
		available := extractor.OptionAvailable(s) && s.Find("[data-component='SizeSelectorOutOfStock']").Length() == 0
		sizes = append(sizes, models.Size{Name: name, InStock: available})
	})
	if len(sizes) == 0 {
		return f.Generic.Sizes()
	}
	return sizes
}

func (f *farfetch) Images() []string {
	raws := extractor.ImagesFrom(f.Doc(), "[data-testid='gallery'] img", "[data-component='Img']")
	return extractor.ResolveImages(f.URL(), append(f.Generic.Images(), raws...)...)
}
