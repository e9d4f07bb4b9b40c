package sites

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
)

var amazonDomains = []string{
	"amazon.com",
	"amazon.de",
	"amazon.co.uk",
	"amazon.fr",
	"amazon.it",
	"amazon.es",
	"amazon.ca",
	"amazon.co.jp",
}

var amazonHiresPattern = regexp.MustCompile(`"hiRes":"(https://[^"]+)"`)

// amazon reads the classic buy-box layout. Availability is only trusted
// when the page states it.
type amazon struct {
	*extractor.Generic
}

func newAmazon(in extractor.Input) extractor.Extractor {
	g := extractor.NewGeneric(in)
	g.Optimistic = false
	return &amazon{Generic: g}
}

func (a *amazon) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(a, extractor.Options{RequireCore: true})
}

func (a *amazon) Name() string {
	return extractor.FirstText(a.Doc(), "#productTitle", "#title")
}

func (a *amazon) Price() *models.PriceInfo {
	doc := a.Doc()

	if offscreen := extractor.FirstText(doc,
		"#corePrice_feature_div .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-offscreen",
		".apexPriceToPay .a-offscreen",
	); offscreen != "" {
		if p, ok := price.Parse(offscreen); ok && p.AmountMinorUnits > 0 {
			return &p
		}
	}

	return extractor.PriceFromSelectors(doc,
		"span.a-price.a-text-price.a-size-medium.apexPriceToPay",
		".a-price-range",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
		".a-price.a-text-price.header-price",
	)
}

func (a *amazon) Sizes() []models.Size {
	var sizes []models.Size
	a.Doc().Find("#native_dropdown_selected_size_name option").Each(func(i int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		if value == "-1" {
			return
		}
		class, _ := s.Attr("class")
		sizes = append(sizes, models.Size{
			Name:    s.Text(),
			InStock: !strings.Contains(class, "Unavailable"),
		})
	})
	if len(sizes) > 0 {
		return sizes
	}

	a.Doc().Find("#variation_size_name li").Each(func(i int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		sizes = append(sizes, models.Size{
			Name:    s.Find(".a-size-base").Text(),
			InStock: !strings.Contains(class, "swatchUnavailable"),
		})
	})
	return sizes
}

func (a *amazon) Colors() []models.Color {
	var colors []models.Color
	a.Doc().Find("#variation_color_name li").Each(func(i int, s *goquery.Selection) {
		img := s.Find("img").First()
		name, _ := img.Attr("alt")
		if name == "" {
			name, _ = s.Attr("title")
			name = strings.TrimPrefix(name, "Click to select ")
		}
		swatch, _ := extractor.ResolveURL(a.URL(), extractor.ImageSource(img))
		colors = append(colors, models.Color{Name: name, SwatchURL: swatch})
	})
	if len(colors) == 0 {
		if selected := extractor.FirstText(a.Doc(), "#variation_color_name .selection"); selected != "" {
			colors = append(colors, models.Color{Name: selected})
		}
	}
	return colors
}

func (a *amazon) Images() []string {
	var raws []string
	for _, m := range amazonHiresPattern.FindAllStringSubmatch(a.HTML(), -1) {
		raws = append(raws, m[1])
	}

	a.Doc().Find("#altImages ul li img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists && !strings.Contains(src, "play-button") {
			raws = append(raws, strings.Replace(src, "_AC_US40_", "_AC_SL1500_", 1))
		}
	})

	if main := extractor.FirstAttr(a.Doc(), "data-old-hires", "#landingImage"); main != "" {
		raws = append(raws, main)
	} else if main := extractor.FirstAttr(a.Doc(), "src", "#landingImage", "#imgBlkFront"); main != "" {
		raws = append(raws, main)
	}

	return extractor.ResolveImages(a.URL(), raws...)
}

func (a *amazon) Stock(sizes []models.Size) (bool, bool) {
	return a.ResolveStock(sizes, a.AvailabilityText(), false)
}

func (a *amazon) AvailabilityText() string {
	return extractor.TextOf(a.Doc(), "#availability", "#outOfStock", "#availabilityInsideBuyBox_feature_div")
}

func (a *amazon) Description() string {
	bullets := extractor.TextOf(a.Doc(), "#feature-bullets li")
	if bullets != "" {
		return bullets
	}
	return extractor.FirstText(a.Doc(), "#productDescription")
}
