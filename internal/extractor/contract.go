// Package extractor defines the extraction contract shared by the generic
// fallback and every site variant, plus the structured-data, image and
// interaction helpers the variants are built from.
package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

// Capabilities is the fixed set of reads every variant answers. Stock reports
// known=false when the page carried no availability signal at all.
type Capabilities interface {
	Name() string
	Price() *models.PriceInfo
	Sizes() []models.Size
	Colors() []models.Color
	Images() []string
	Stock(sizes []models.Size) (inStock bool, known bool)
	Description() string
}

// Extractor produces one ScrapedProduct per call.
type Extractor interface {
	Extract(ctx context.Context) (*models.ScrapedProduct, error)
}

// Input is everything a variant is constructed from. Page is nil on the
// static path.
type Input struct {
	URL  *url.URL
	HTML string
	Doc  *goquery.Document
	Page Page
}

// NewInput parses html once so that every capability reads the same document.
func NewInput(pageURL *url.URL, html string, page Page) (Input, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Input{}, scrapeerr.ExtractionError{Field: "document", Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	return Input{URL: pageURL, HTML: html, Doc: doc, Page: page}, nil
}

// NewInputFromDocument reuses a document the fetcher already parsed from html.
func NewInputFromDocument(pageURL *url.URL, html string, doc *goquery.Document, page Page) (Input, error) {
	if doc == nil {
		return NewInput(pageURL, html, page)
	}
	return Input{URL: pageURL, HTML: html, Doc: doc, Page: page}, nil
}

// Options tunes Assemble.
type Options struct {
	// RequireCore fails the extraction when neither a name nor a price was
	// found, which means the page layout no longer matches the variant.
	RequireCore bool
}

// Assemble is the default orchestration: call every capability, merge the
// results and fill the defaults.
func Assemble(c Capabilities, opts Options) (*models.ScrapedProduct, error) {
	product := models.NewScrapedProduct()

	product.Name = CleanText(c.Name())
	product.Price = c.Price()
	product.Sizes = DedupeSizes(c.Sizes())
	product.Colors = DedupeColors(c.Colors())
	product.Images = dedupeStrings(c.Images())
	product.Description = CleanText(c.Description())

	if opts.RequireCore && product.Name == "" && product.Price == nil {
		return nil, scrapeerr.ExtractionError{Field: "name and price", Err: scrapeerr.ErrElementMissing}
	}

	if len(product.Images) == 0 {
		product.Images = []string{models.PlaceholderImage}
	}

	inStock, known := c.Stock(product.Sizes)
	if !known {
		inStock = product.HasPrice()
	}
	product.InStock = inStock

	return product, nil
}
