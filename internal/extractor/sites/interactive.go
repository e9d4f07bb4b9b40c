// Package sites holds the site-specific extractor variants and the static
// registration table the router dispatches on.
package sites

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

// sizeFlow describes how an interactive variant reveals its size list.
type sizeFlow struct {
	actions   []extractor.Action
	snapshot  string
	parse     func(doc *goquery.Document) []models.Size
	addToCart []string
}

// run drives the flow against the live page. A structural failure (selector
// gone after a redesign) degrades to a One Size entry; timeouts propagate.
func (f sizeFlow) run(ctx context.Context, g *extractor.Generic) ([]models.Size, error) {
	if g.Page() == nil {
		return nil, scrapeerr.ExtractionError{Field: "page", Err: scrapeerr.ErrNoBrowser}
	}

	snaps, err := extractor.RunActions(ctx, g.Page(), f.actions...)
	if err != nil {
		return extractor.StructuralFallback(err, addToCartEnabled(g, f.addToCart))
	}

	snap, ok := snaps.Get(f.snapshot)
	if !ok {
		return extractor.OneSize(addToCartEnabled(g, f.addToCart)), nil
	}
	sizes := f.parse(snap.Doc)
	if len(sizes) == 0 {
		return extractor.OneSize(addToCartEnabled(g, f.addToCart)), nil
	}
	return sizes, nil
}

// addToCartEnabled asks the live page first and falls back to the rendered
// DOM snapshot.
func addToCartEnabled(g *extractor.Generic, selectors []string) bool {
	if page := g.Page(); page != nil {
		for _, selector := range selectors {
			if enabled, err := page.IsEnabled(selector); err == nil {
				return enabled
			}
		}
	}
	return extractor.AddToCartEnabled(g.Doc(), selectors...)
}
