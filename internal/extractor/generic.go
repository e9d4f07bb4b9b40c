package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
	"github.com/maltedev/product-extractor/internal/stock"
)

var (
	nameSelectors = []string{
		"h1[itemprop='name']",
		"[data-testid='product-title']",
		".product-title",
		".product__title",
		".product-name",
		"#productTitle",
		"h1",
	}
	priceSelectors = []string{
		"[itemprop='price']",
		"[data-testid='product-price']",
		".product-price",
		".product__price",
		".price--sale",
		".sale-price",
		".price-sales",
		".price",
		"#price",
		"[class*='Price']",
	}
	sizeSelectors = []string{
		"select[name*='size'] option",
		"select[id*='size'] option",
		"[data-size]",
		".size-selector button",
		".size-selector li",
		".sizes li",
		"[class*='size-option']",
		"[class*='SizeSelector'] button",
	}
	colorSelectors = []string{
		"[data-color]",
		".color-swatch",
		".swatch[title]",
		"[class*='color-option']",
	}
	imageSelectors = []string{
		"[itemprop='image']",
		".product-gallery img",
		".product__media img",
		".product-images img",
		"[class*='gallery'] img",
		"[data-testid*='image'] img",
	}
	descriptionSelectors = []string{
		"[itemprop='description']",
		".product-description",
		".product__description",
		"#description",
		"#productDescription",
	}
	availabilitySelectors = []string{
		"[itemprop='availability']",
		"#availability",
		".availability",
		".stock-status",
		".product-availability",
		"[class*='sold-out']",
		"[class*='soldout']",
		"[data-testid*='availability']",
	}
)

// Generic reads a product through structured data first and common
// selector heuristics second. It never fails on well-formed HTML. Site
// variants embed it and override the capabilities they know better.
type Generic struct {
	in         Input
	structured *StructuredProduct
	// Optimistic is the stock default when no signal is found. Variants whose
	// pages always state availability set it to false.
	Optimistic bool
}

// NewGeneric parses the structured data once.
func NewGeneric(in Input) *Generic {
	g := &Generic{in: in, Optimistic: true}
	g.structured, _ = ParseJSONLD(g.Doc())
	return g
}

// New is the Factory for the generic fallback.
func New(in Input) Extractor {
	return NewGeneric(in)
}

func (g *Generic) Doc() *goquery.Document {
	if g.in.Doc == nil {
		g.in.Doc, _ = goquery.NewDocumentFromReader(strings.NewReader(g.in.HTML))
	}
	return g.in.Doc
}

func (g *Generic) URL() *url.URL { return g.in.URL }

func (g *Generic) HTML() string { return g.in.HTML }

func (g *Generic) Page() Page { return g.in.Page }

// Structured returns the JSON-LD product, or nil.
func (g *Generic) Structured() *StructuredProduct { return g.structured }

func (g *Generic) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return Assemble(g, Options{})
}

func (g *Generic) Name() string {
	if g.structured != nil && g.structured.Name != "" {
		return g.structured.Name
	}
	if name := Meta(g.Doc(), "og:title"); name != "" {
		return name
	}
	if name := FirstText(g.Doc(), nameSelectors...); name != "" {
		return name
	}
	return titleWithoutSite(FirstText(g.Doc(), "title"))
}

func (g *Generic) Price() *models.PriceInfo {
	if g.structured != nil && g.structured.Price != nil {
		return g.structured.Price
	}
	doc := g.Doc()
	for _, prefix := range []string{"product:price", "og:price"} {
		amount := Meta(doc, prefix+":amount")
		if amount == "" {
			continue
		}
		if p, ok := price.FromAmount(amount, Meta(doc, prefix+":currency")); ok && p.AmountMinorUnits > 0 {
			return &p
		}
	}
	if content := FirstAttr(doc, "content", "[itemprop='price'][content]"); content != "" {
		currency := FirstAttr(doc, "content", "[itemprop='priceCurrency']")
		if p, ok := price.FromAmount(content, currency); ok && p.AmountMinorUnits > 0 {
			return &p
		}
	}
	return PriceFromSelectors(doc, priceSelectors...)
}

func (g *Generic) Sizes() []models.Size {
	if g.structured != nil && len(g.structured.Sizes) > 0 {
		return g.structured.Sizes
	}
	return SizesFrom(g.Doc(), "data-size", sizeSelectors...)
}

func (g *Generic) Colors() []models.Color {
	if g.structured != nil && len(g.structured.Colors) > 0 {
		return g.structured.Colors
	}
	var colors []models.Color
	for _, selector := range colorSelectors {
		g.Doc().Find(selector).Each(func(_ int, s *goquery.Selection) {
			name := attrOr(s, "data-color", "title", "aria-label")
			if name == "" {
				name = s.Text()
			}
			swatch := ""
			if img := s.Find("img").First(); img.Length() > 0 {
				swatch, _ = ResolveURL(g.in.URL, ImageSource(img))
			}
			colors = append(colors, models.Color{Name: name, SwatchURL: swatch})
		})
		if len(colors) > 0 {
			break
		}
	}
	return DedupeColors(colors)
}

func (g *Generic) Images() []string {
	var raws []string
	if g.structured != nil {
		raws = append(raws, g.structured.Images...)
	}
	raws = append(raws, Meta(g.Doc(), "og:image"), Meta(g.Doc(), "twitter:image"))
	raws = append(raws, ImagesFrom(g.Doc(), imageSelectors...)...)
	return ResolveImages(g.in.URL, raws...)
}

func (g *Generic) Stock(sizes []models.Size) (bool, bool) {
	return g.ResolveStock(sizes, g.AvailabilityText(), g.Optimistic)
}

// ResolveStock runs the stock resolver over this page's signals and the given
// availability text. When no signal decides and optimistic is set, known is
// false so that Assemble falls back to the price.
func (g *Generic) ResolveStock(sizes []models.Size, text string, optimistic bool) (bool, bool) {
	signals := stock.Signals{
		Text:             text,
		AddToCartEnabled: AddToCartEnabled(g.Doc()),
		Optimistic:       optimistic,
	}
	if g.structured != nil {
		signals.Structured = g.structured.Availability
	}
	if avail := stock.ParseAvailability(FirstAttr(g.Doc(), "content", "meta[property='product:availability']", "meta[property='og:availability']")); avail != stock.Unknown && signals.Structured == stock.Unknown {
		signals.Structured = avail
	}
	if avail := stock.ParseAvailability(FirstAttr(g.Doc(), "href", "link[itemprop='availability']")); avail != stock.Unknown && signals.Structured == stock.Unknown {
		signals.Structured = avail
	}

	inStock, decided := stock.Resolve(sizes, signals)
	if !decided && optimistic {
		return false, false
	}
	return inStock, true
}

// AvailabilityText returns the text of the buy-box availability regions.
func (g *Generic) AvailabilityText() string {
	return TextOf(g.Doc(), availabilitySelectors...)
}

func (g *Generic) Description() string {
	if g.structured != nil && g.structured.Description != "" {
		return g.structured.Description
	}
	if desc := FirstText(g.Doc(), descriptionSelectors...); desc != "" {
		return desc
	}
	if desc := Meta(g.Doc(), "og:description"); desc != "" {
		return desc
	}
	return Meta(g.Doc(), "description")
}

func attrOr(s *goquery.Selection, attrs ...string) string {
	for _, attr := range attrs {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func titleWithoutSite(title string) string {
	for _, sep := range []string{" | ", " - ", " – ", " — "} {
		if i := strings.LastIndex(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return title
}
