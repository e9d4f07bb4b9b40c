package extractor

import (
	"slices"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/price"
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstText returns the text of the first selector that yields non-empty text.
func FirstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if text := CleanText(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// FirstAttr returns the attribute of the first selector that carries it.
func FirstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, selector := range selectors {
		if value, ok := doc.Find(selector).First().Attr(attr); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}
	return ""
}

// Meta reads a <meta> tag by property or name.
func Meta(doc *goquery.Document, key string) string {
	return FirstAttr(doc, "content", `meta[property="`+key+`"]`, `meta[name="`+key+`"]`, `meta[itemprop="`+key+`"]`)
}

// PriceFromSelectors parses the first selector whose text normalizes to a
// positive price.
func PriceFromSelectors(doc *goquery.Document, selectors ...string) *models.PriceInfo {
	for _, selector := range selectors {
		text := CleanText(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if p, ok := price.Parse(text); ok && p.AmountMinorUnits > 0 {
			return &p
		}
	}
	return nil
}

// TextOf concatenates the text of every match of the selectors.
func TextOf(doc *goquery.Document, selectors ...string) string {
	var b strings.Builder
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			b.WriteString(s.Text())
			b.WriteString(" ")
		})
	}
	return CleanText(b.String())
}

var defaultAddToCartSelectors = []string{
	"#add-to-cart-button",
	"button[name='add']",
	"button[name='add-to-cart']",
	"button[data-testid*='add-to-cart']",
	"button[data-testid*='add-to-bag']",
	"button.add-to-cart",
	"button[class*='add-to-cart']",
	"button[class*='addToCart']",
	"button[class*='add-to-bag']",
	"form[action*='cart'] button[type='submit']",
	"input#add-to-cart-button",
}

// AddToCartEnabled reports whether an enabled add-to-cart or add-to-bag
// control is present. Extra selectors are checked before the defaults.
func AddToCartEnabled(doc *goquery.Document, selectors ...string) bool {
	candidates := append(append([]string{}, selectors...), defaultAddToCartSelectors...)
	for _, selector := range candidates {
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if controlEnabled(s) {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

func controlEnabled(s *goquery.Selection) bool {
	if _, disabled := s.Attr("disabled"); disabled {
		return false
	}
	if aria, _ := s.Attr("aria-disabled"); strings.EqualFold(aria, "true") {
		return false
	}
	class, _ := s.Attr("class")
	return !strings.Contains(strings.ToLower(class), "disabled")
}

var soldOutClassMarkers = []string{"unavailable", "out-of-stock", "outofstock", "sold-out", "soldout"}

// OptionAvailable reports whether a size or swatch element is selectable.
func OptionAvailable(s *goquery.Selection) bool {
	if !controlEnabled(s) {
		return false
	}
	class, _ := s.Attr("class")
	if soldOutClass(class) {
		return false
	}
	if avail, ok := s.Attr("data-available"); ok && strings.EqualFold(avail, "false") {
		return false
	}
	return true
}

// soldOutClass matches the long markers anywhere in a class attribute. The
// "oos" abbreviation only counts as a whole word of a class name
// ("size--oos", "oos"), never inside "choose" or "boost".
func soldOutClass(class string) bool {
	class = strings.ToLower(class)
	for _, marker := range soldOutClassMarkers {
		if strings.Contains(class, marker) {
			return true
		}
	}
	words := strings.FieldsFunc(class, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return slices.Contains(words, "oos")
}

// SizesFrom reads size entries from the matches of selectors, taking the
// name from attr when set and the element text otherwise.
func SizesFrom(doc *goquery.Document, attr string, selectors ...string) []models.Size {
	var sizes []models.Size
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			name := ""
			if attr != "" {
				name, _ = s.Attr(attr)
			}
			if name == "" {
				name = s.Text()
			}
			name = CleanText(name)
			if name == "" || isPlaceholderOption(name) {
				return
			}
			sizes = append(sizes, models.Size{Name: name, InStock: OptionAvailable(s)})
		})
		if len(sizes) > 0 {
			break
		}
	}
	return DedupeSizes(sizes)
}

func isPlaceholderOption(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range []string{"select", "choose", "pick a", "größe wählen", "wähle", "sélectionner", "-"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// DedupeSizes keeps the first occurrence of each size name, upgrading it to
// in stock when any duplicate is available.
func DedupeSizes(sizes []models.Size) []models.Size {
	out := make([]models.Size, 0, len(sizes))
	index := make(map[string]int, len(sizes))
	for _, s := range sizes {
		s.Name = CleanText(s.Name)
		if s.Name == "" {
			continue
		}
		key := strings.ToLower(s.Name)
		if i, ok := index[key]; ok {
			out[i].InStock = out[i].InStock || s.InStock
			continue
		}
		index[key] = len(out)
		out = append(out, s)
	}
	return out
}

// DedupeColors keeps the first occurrence of each color name.
func DedupeColors(colors []models.Color) []models.Color {
	out := make([]models.Color, 0, len(colors))
	seen := make(map[string]int, len(colors))
	for _, c := range colors {
		c.Name = CleanText(c.Name)
		if c.Name == "" {
			continue
		}
		key := strings.ToLower(c.Name)
		if i, ok := seen[key]; ok {
			if out[i].SwatchURL == "" {
				out[i].SwatchURL = c.SwatchURL
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, c)
	}
	return out
}

func dedupeStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
