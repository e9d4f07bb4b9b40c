package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResolveURL makes raw absolute against base. Protocol-relative URLs always
// get https. Data URIs and javascript links are rejected.
func ResolveURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "blob:") {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", false
		}
		return ref.String(), true
	}
	if base == nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// ResolveImages resolves and deduplicates image URLs, keeping first-seen order.
func ResolveImages(base *url.URL, raws ...string) []string {
	out := make([]string, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		resolved, ok := ResolveURL(base, raw)
		if !ok || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

// LargestFromSrcset returns the last candidate of a srcset attribute, which
// by convention is the widest.
func LargestFromSrcset(srcset string) string {
	candidates := strings.Split(srcset, ",")
	for i := len(candidates) - 1; i >= 0; i-- {
		fields := strings.Fields(candidates[i])
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// ImageSource picks the best source attribute of an <img> or <source>,
// preferring lazy-load attributes over placeholder src values.
func ImageSource(s *goquery.Selection) string {
	for _, attr := range []string{"data-zoom-image", "data-old-hires", "data-src", "data-lazy-src", "data-original"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	for _, attr := range []string{"data-srcset", "srcset"} {
		if v, ok := s.Attr(attr); ok {
			if largest := LargestFromSrcset(v); largest != "" {
				return largest
			}
		}
	}
	src, _ := s.Attr("src")
	return src
}

// ImagesFrom collects image sources from every match of the selectors.
func ImagesFrom(doc *goquery.Document, selectors ...string) []string {
	var out []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if src := ImageSource(s); src != "" {
				out = append(out, src)
			}
		})
	}
	return out
}
