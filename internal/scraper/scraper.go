// Package scraper routes a product URL to its site extractor and acquires the
// rendering context that extractor needs.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/render"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

// Fetcher retrieves raw HTML without executing scripts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*render.Page, error)
}

// Browser opens a navigated page. Callers close the handle.
type Browser interface {
	Open(ctx context.Context, url string) (extractor.PageHandle, error)
}

// Observer receives one call per routed extraction.
type Observer interface {
	ObserveExtraction(domain string, duration time.Duration, err error)
}

type Router struct {
	registry *extractor.Registry
	strategy *render.Strategy
	fetcher  Fetcher
	observer Observer
	logger   *slog.Logger
}

type Option func(*Router)

func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func NewRouter(registry *extractor.Registry, strategy *render.Strategy, fetcher Fetcher, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		strategy: strategy,
		fetcher:  fetcher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// RouteAndScrape extracts one product with the variant registered for the
// URL's domain. A nil browser is allowed for static domains; a dynamic domain
// without one fails rather than degrading to static HTML.
func (r *Router) RouteAndScrape(ctx context.Context, rawURL string, b Browser) (*models.ScrapedProduct, error) {
	u, err := ParseProductURL(rawURL)
	if err != nil {
		return nil, &scrapeerr.RouteError{URL: rawURL, Err: err}
	}
	domain := NormalizeHost(u.Hostname())

	reg, ok := r.registry.Lookup(domain)
	if !ok {
		return nil, &scrapeerr.RouteError{URL: rawURL, Domain: domain, Err: scrapeerr.UnregisteredDomainError{Domain: domain}}
	}

	dynamic := reg.Dynamic || r.strategy.RequiresDynamic(domain)
	logger := r.logger.With("url", rawURL, "domain", domain, "variant", reg.Name, "dynamic", dynamic)
	start := time.Now()

	var product *models.ScrapedProduct
	if dynamic {
		product, err = r.scrapeDynamic(ctx, u, b, reg.New)
	} else {
		product, err = r.scrapeStatic(ctx, u, reg.New)
	}
	r.observe(domain, start, err)

	if err != nil {
		logger.Warn("extraction failed", "error", err, "kind", scrapeerr.Kind(err), "duration", time.Since(start))
		return nil, &scrapeerr.RouteError{URL: rawURL, Domain: domain, Err: err}
	}

	logger.Info("extraction complete",
		"name", product.Name,
		"in_stock", product.InStock,
		"sizes", len(product.Sizes),
		"duration", time.Since(start),
	)
	return product, nil
}

// ScrapeProductFromURL runs the generic extractor over statically fetched
// HTML for any domain.
func (r *Router) ScrapeProductFromURL(ctx context.Context, rawURL string) (*models.ScrapedProduct, error) {
	u, err := ParseProductURL(rawURL)
	if err != nil {
		return nil, &scrapeerr.RouteError{URL: rawURL, Err: err}
	}
	domain := NormalizeHost(u.Hostname())
	start := time.Now()

	product, err := r.scrapeStatic(ctx, u, extractor.New)
	r.observe(domain, start, err)
	if err != nil {
		return nil, &scrapeerr.RouteError{URL: rawURL, Domain: domain, Err: err}
	}
	return product, nil
}

func (r *Router) scrapeStatic(ctx context.Context, u *url.URL, factory extractor.Factory) (*models.ScrapedProduct, error) {
	page, err := r.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	pageURL := u
	if final, err := url.Parse(page.URL); err == nil && final.Host != "" {
		pageURL = final
	}

	in, err := extractor.NewInputFromDocument(pageURL, page.HTML, page.Doc, nil)
	if err != nil {
		return nil, err
	}
	return extract(ctx, factory(in))
}

func (r *Router) scrapeDynamic(ctx context.Context, u *url.URL, b Browser, factory extractor.Factory) (*models.ScrapedProduct, error) {
	if b == nil {
		return nil, scrapeerr.ExtractionError{Field: "page", Err: scrapeerr.ErrNoBrowser}
	}

	page, err := b.Open(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Debug("failed to close page", "url", u.String(), "error", err)
		}
	}()

	html, err := page.Content()
	if err != nil {
		return nil, err
	}

	pageURL := u
	if final, err := url.Parse(page.URL()); err == nil && final.Host != "" {
		pageURL = final
	}

	in, err := extractor.NewInput(pageURL, html, page)
	if err != nil {
		return nil, err
	}
	return extract(ctx, factory(in))
}

// extract contains a panicking variant to the one request.
func extract(ctx context.Context, e extractor.Extractor) (product *models.ScrapedProduct, err error) {
	defer func() {
		if p := recover(); p != nil {
			product = nil
			err = scrapeerr.ExtractionError{Field: "panic", Err: fmt.Errorf("%v", p)}
		}
	}()
	return e.Extract(ctx)
}

func (r *Router) observe(domain string, start time.Time, err error) {
	if r.observer != nil {
		r.observer.ObserveExtraction(domain, time.Since(start), err)
	}
}
