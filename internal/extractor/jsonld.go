package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
	"github.com/maltedev/product-extractor/internal/stock"
)

// StructuredProduct is the subset of a schema.org Product (or a storefront's
// serialized product object) the extractors care about. Every field is
// optional.
type StructuredProduct struct {
	Name         string
	Description  string
	Brand        string
	Images       []string
	Price        *models.PriceInfo
	Availability stock.Availability
	Color        string
	Sizes        []models.Size
	Colors       []models.Color
}

// ParseJSONLD returns the first Product node found in the page's JSON-LD
// blocks. Malformed blocks are skipped.
func ParseJSONLD(doc *goquery.Document) (*StructuredProduct, bool) {
	var found *StructuredProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &raw); err != nil {
			return true
		}
		if node := findProductNode(raw); node != nil {
			found = productFromNode(node)
			return false
		}
		return true
	})
	return found, found != nil
}

func findProductNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if node := findProductNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if hasType(t, "Product") || hasType(t, "ProductGroup") {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProductNode(graph)
		}
		if entity, ok := t["mainEntity"]; ok {
			return findProductNode(entity)
		}
	}
	return nil
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func productFromNode(node map[string]any) *StructuredProduct {
	p := &StructuredProduct{
		Name:        stringValue(node["name"]),
		Description: stringValue(node["description"]),
		Color:       stringValue(node["color"]),
		Images:      imageValues(node["image"]),
	}

	switch brand := node["brand"].(type) {
	case string:
		p.Brand = brand
	case map[string]any:
		p.Brand = stringValue(brand["name"])
	}

	p.Price, p.Availability = offerValues(node["offers"])

	if p.Color != "" {
		p.Colors = append(p.Colors, models.Color{Name: p.Color})
	}

	variants, _ := node["hasVariant"].([]any)
	for _, v := range variants {
		variant, ok := v.(map[string]any)
		if !ok {
			continue
		}
		vPrice, vAvail := offerValues(variant["offers"])
		if p.Price == nil {
			p.Price = vPrice
		}
		if size := stringValue(variant["size"]); size != "" {
			p.Sizes = append(p.Sizes, models.Size{Name: size, InStock: vAvail == stock.InStock})
		}
		if color := stringValue(variant["color"]); color != "" {
			p.Colors = append(p.Colors, models.Color{Name: color})
		}
		if len(p.Images) == 0 {
			p.Images = imageValues(variant["image"])
		}
		if p.Availability != stock.InStock && vAvail != stock.Unknown {
			p.Availability = vAvail
		}
	}

	p.Sizes = DedupeSizes(p.Sizes)
	p.Colors = DedupeColors(p.Colors)
	return p
}

// offerValues reads price and availability from an Offer, AggregateOffer or
// a list of offers. The first priced offer wins; availability is InStock when
// any offer is in stock.
func offerValues(v any) (*models.PriceInfo, stock.Availability) {
	switch t := v.(type) {
	case []any:
		var first *models.PriceInfo
		avail := stock.Unknown
		for _, item := range t {
			p, a := offerValues(item)
			if first == nil {
				first = p
			}
			if a == stock.InStock || avail == stock.Unknown {
				avail = a
			}
		}
		return first, avail
	case map[string]any:
		currency := stringValue(t["priceCurrency"])
		var amount string
		for _, key := range []string{"price", "lowPrice", "highPrice"} {
			if amount = numberString(t[key]); amount != "" {
				break
			}
		}
		if amount == "" {
			if spec, ok := t["priceSpecification"].(map[string]any); ok {
				amount = numberString(spec["price"])
				if currency == "" {
					currency = stringValue(spec["priceCurrency"])
				}
			}
		}
		avail := stock.ParseAvailability(stringValue(t["availability"]))
		if nested, ok := t["offers"]; ok && amount == "" {
			p, a := offerValues(nested)
			if avail == stock.Unknown {
				avail = a
			}
			return p, avail
		}
		if amount == "" {
			return nil, avail
		}
		if p, ok := price.FromAmount(amount, currency); ok && p.AmountMinorUnits > 0 {
			return &p, avail
		}
		return nil, avail
	}
	return nil, stock.Unknown
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []any:
		if len(t) > 0 {
			return stringValue(t[0])
		}
	}
	return ""
}

func numberString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%.2f", t)
	case json.Number:
		return t.String()
	}
	return ""
}

func imageValues(v any) []string {
	switch t := v.(type) {
	case string:
		if t = strings.TrimSpace(t); t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, imageValues(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"url", "contentUrl", "src"} {
			if s, ok := t[key].(string); ok && s != "" {
				return []string{s}
			}
		}
	}
	return nil
}
