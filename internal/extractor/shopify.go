package extractor

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
)

var (
	sizeOptionPattern  = regexp.MustCompile(`(?i)size|größe|taille|talla|maat`)
	colorOptionPattern = regexp.MustCompile(`(?i)colou?r|farbe|couleur`)
)

// ShopifyProduct is the product object Shopify themes serialize into the page
// (the /products/<handle>.js format).
type ShopifyProduct struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Vendor      string           `json:"vendor"`
	Available   *bool            `json:"available"`
	Price       shopifyPrice     `json:"price"`
	Images      []shopifyImage   `json:"images"`
	Options     []shopifyOption  `json:"options"`
	Variants    []ShopifyVariant `json:"variants"`
}

type ShopifyVariant struct {
	Title     string       `json:"title"`
	Option1   string       `json:"option1"`
	Option2   string       `json:"option2"`
	Option3   string       `json:"option3"`
	Available bool         `json:"available"`
	Price     shopifyPrice `json:"price"`
}

func (v ShopifyVariant) option(i int) string {
	switch i {
	case 0:
		return v.Option1
	case 1:
		return v.Option2
	case 2:
		return v.Option3
	}
	return ""
}

// shopifyPrice accepts both integer cents (product.js) and decimal strings
// (products.json).
type shopifyPrice struct {
	minor int64
	set   bool
}

func (p *shopifyPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if parsed, ok := price.FromAmount(s, ""); ok {
			p.minor, p.set = parsed.AmountMinorUnits, true
		}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, err := n.Int64(); err == nil {
		p.minor, p.set = v, true
		return nil
	}
	if parsed, ok := price.FromAmount(n.String(), ""); ok {
		p.minor, p.set = parsed.AmountMinorUnits, true
	}
	return nil
}

type shopifyImage string

func (i *shopifyImage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = shopifyImage(s)
		return nil
	}
	var obj struct {
		Src string `json:"src"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*i = shopifyImage(obj.Src)
	return nil
}

type shopifyOption struct {
	Name string
}

func (o *shopifyOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	o.Name = obj.Name
	return nil
}

var shopifySelectors = []string{
	"script[data-product-json]",
	"script[id^='ProductJson']",
	"script[type='application/json'][data-product]",
	"script#product-json",
}

// ParseShopify decodes the first serialized Shopify product object on the page.
func ParseShopify(doc *goquery.Document) (*ShopifyProduct, bool) {
	for _, selector := range shopifySelectors {
		var product *ShopifyProduct
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			var p ShopifyProduct
			if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &p); err != nil {
				return true
			}
			if p.Title == "" && len(p.Variants) == 0 {
				return true
			}
			product = &p
			return false
		})
		if product != nil {
			return product, true
		}
	}
	return nil, false
}

// PriceIn returns the product price, falling back to the first variant.
func (p *ShopifyProduct) PriceIn(currency string) *models.PriceInfo {
	if p.Price.set && p.Price.minor > 0 {
		info := price.FromMinor(p.Price.minor, currency)
		return &info
	}
	for _, v := range p.Variants {
		if v.Price.set && v.Price.minor > 0 {
			info := price.FromMinor(v.Price.minor, currency)
			return &info
		}
	}
	return nil
}

// ImageURLs returns the raw image sources in theme order.
func (p *ShopifyProduct) ImageURLs() []string {
	out := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		out = append(out, string(img))
	}
	return out
}

// Sizes returns the values of the size option, in stock when any variant
// carrying the value is available.
func (p *ShopifyProduct) Sizes() []models.Size {
	idx := p.optionIndex(sizeOptionPattern)
	if idx < 0 {
		return nil
	}
	var sizes []models.Size
	for _, v := range p.Variants {
		if name := v.option(idx); name != "" {
			sizes = append(sizes, models.Size{Name: name, InStock: v.Available})
		}
	}
	return DedupeSizes(sizes)
}

// Colors returns the values of the color option.
func (p *ShopifyProduct) Colors() []models.Color {
	idx := p.optionIndex(colorOptionPattern)
	if idx < 0 {
		return nil
	}
	var colors []models.Color
	for _, v := range p.Variants {
		if name := v.option(idx); name != "" {
			colors = append(colors, models.Color{Name: name})
		}
	}
	return DedupeColors(colors)
}

// AnyAvailable reports the product-level flag, or whether any variant is
// available when the flag is missing.
func (p *ShopifyProduct) AnyAvailable() bool {
	if p.Available != nil {
		return *p.Available
	}
	for _, v := range p.Variants {
		if v.Available {
			return true
		}
	}
	return false
}

func (p *ShopifyProduct) optionIndex(pattern *regexp.Regexp) int {
	for i, o := range p.Options {
		if i > 2 {
			break
		}
		if pattern.MatchString(o.Name) {
			return i
		}
	}
	return -1
}
