package sites

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/stock"
)

// shopifyStore serves storefronts that serialize the Shopify product object
// into the page. Allbirds and Gymshark both do.
type shopifyStore struct {
	*extractor.Generic
	product *extractor.ShopifyProduct
}

func newShopifyStore(in extractor.Input) extractor.Extractor {
	s := &shopifyStore{Generic: extractor.NewGeneric(in)}
	s.product, _ = extractor.ParseShopify(s.Doc())
	return s
}

func (s *shopifyStore) Extract(_ context.Context) (*models.ScrapedProduct, error) {
	return extractor.Assemble(s, extractor.Options{RequireCore: true})
}

func (s *shopifyStore) currency() string {
	for _, key := range []string{"og:price:currency", "product:price:currency"} {
		if c := extractor.Meta(s.Doc(), key); c != "" {
			return c
		}
	}
	if st := s.Structured(); st != nil && st.Price != nil {
		return st.Price.CurrencyCode
	}
	return ""
}

func (s *shopifyStore) Name() string {
	if s.product != nil && s.product.Title != "" {
		return s.product.Title
	}
	return s.Generic.Name()
}

func (s *shopifyStore) Price() *models.PriceInfo {
	if s.product != nil {
		if p := s.product.PriceIn(s.currency()); p != nil {
			return p
		}
	}
	return s.Generic.Price()
}

func (s *shopifyStore) Sizes() []models.Size {
	if s.product != nil {
		if sizes := s.product.Sizes(); len(sizes) > 0 {
			return sizes
		}
	}
	return s.Generic.Sizes()
}

func (s *shopifyStore) Colors() []models.Color {
	if s.product != nil {
		if colors := s.product.Colors(); len(colors) > 0 {
			return colors
		}
	}
	return s.Generic.Colors()
}

func (s *shopifyStore) Images() []string {
	if s.product != nil {
		if images := extractor.ResolveImages(s.URL(), s.product.ImageURLs()...); len(images) > 0 {
			return images
		}
	}
	return s.Generic.Images()
}

func (s *shopifyStore) Stock(sizes []models.Size) (bool, bool) {
	if s.product != nil {
		return stock.Infer(sizes, stock.Signals{Structured: stock.FromBool(s.product.AnyAvailable())}), true
	}
	return s.Generic.Stock(sizes)
}

func (s *shopifyStore) Description() string {
	if s.product != nil && s.product.Description != "" {
		return stripTags(s.product.Description)
	}
	return s.Generic.Description()
}

// stripTags flattens the body_html description to text.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return extractor.CleanText(doc.Text())
}
