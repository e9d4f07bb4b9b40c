// Package worker drains pending items one at a time, runs them through the
// domain router and persists the classified outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/ratelimit"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
	"github.com/maltedev/product-extractor/internal/scraper"
)

const (
	DefaultDelayMin  = 10 * time.Second
	DefaultDelayMax  = 15 * time.Second
	DefaultIdleDelay = 60 * time.Second
)

type Store interface {
	// NextPendingItem returns nil, nil when the queue is empty.
	NextPendingItem(ctx context.Context) (*models.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, u models.ItemUpdate) (*models.Item, error)
	AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) (*models.PriceHistoryEntry, error)
}

type Scraper interface {
	RouteAndScrape(ctx context.Context, rawURL string, b scraper.Browser) (*models.ScrapedProduct, error)
}

type Publisher interface {
	PublishItemChecked(ctx context.Context, previous, current *models.Item) error
}

type Metrics interface {
	IncItemProcessed(status string)
}

// Result is the outcome of one check. Err is the extraction failure, if any;
// the item has already been persisted either way.
type Result struct {
	Item    *models.Item
	Product *models.ScrapedProduct
	Err     error
}

type Worker struct {
	store     Store
	scraper   Scraper
	browser   scraper.Browser
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger

	delayMin  time.Duration
	delayMax  time.Duration
	idleDelay time.Duration

	// mu serializes checks from the loop and from the API; the browser
	// drives one navigation at a time.
	mu    sync.Mutex
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Worker)

func WithPublisher(p Publisher) Option { return func(w *Worker) { w.publisher = p } }

func WithMetrics(m Metrics) Option { return func(w *Worker) { w.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(w *Worker) { w.logger = l } }

// WithDelays sets the randomized pause after a processed item and the pause
// when the queue is empty.
func WithDelays(min, max, idle time.Duration) Option {
	return func(w *Worker) {
		w.delayMin, w.delayMax, w.idleDelay = min, max, idle
	}
}

// New builds a worker. browser may be nil, in which case items on domains
// that need dynamic rendering fail with an extraction error.
func New(store Store, s Scraper, browser scraper.Browser, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		scraper:   s,
		browser:   browser,
		logger:    slog.Default(),
		delayMin:  DefaultDelayMin,
		delayMax:  DefaultDelayMax,
		idleDelay: DefaultIdleDelay,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     ratelimit.Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "worker")
	return w
}

// Run processes items until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("failed to process item", "error", err)
		}

		delay := w.idleDelay
		if processed {
			delay = ratelimit.Jitter(w.delayMin, w.delayMax)
		}
		if err := w.sleep(ctx, delay); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}
	}
}

// ProcessNext checks the oldest pending item. It reports false when the queue
// was empty. Extraction failures are persisted on the item and do not surface
// here; only store errors do.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	item, err := w.store.NextPendingItem(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch pending item: %w", err)
	}
	if item == nil {
		return false, nil
	}

	if _, err := w.check(ctx, item); err != nil {
		return true, err
	}
	return true, nil
}

// CheckItem runs an out-of-band check of one item, waiting for any check in
// progress.
func (w *Worker) CheckItem(ctx context.Context, item *models.Item) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.check(ctx, item)
}

func (w *Worker) check(ctx context.Context, item *models.Item) (*Result, error) {
	logger := w.logger.With("item_id", item.ID, "url", item.URL)
	logger.Info("checking item")

	product, scrapeErr := w.scrape(ctx, item.URL)
	if scrapeErr != nil && errors.Is(scrapeErr, context.Canceled) && ctx.Err() != nil {
		// shutdown, not a verdict on the item; it stays pending
		return nil, ctx.Err()
	}

	now := w.now()
	update := classify(product, scrapeErr, now)

	updated, err := w.store.UpdateItem(ctx, item.ID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}

	if scrapeErr == nil {
		entry := &models.PriceHistoryEntry{
			ItemID:    item.ID,
			InStock:   product.InStock,
			CheckedAt: now,
		}
		if product.Price != nil {
			entry.AmountMinorUnits = product.Price.AmountMinorUnits
			entry.CurrencyCode = product.Price.CurrencyCode
		}
		if _, err := w.store.AddPriceHistory(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to append price history for %s: %w", item.ID, err)
		}
	}

	status := *update.Status
	switch status {
	case models.StatusProcessed:
		logger.Info("item processed", "name", product.Name, "price", product.Price, "in_stock", product.InStock)
	case models.StatusLinkDead:
		logger.Warn("item link is dead", "error", scrapeErr)
	default:
		logger.Error("item check failed", "kind", scrapeerr.Kind(scrapeErr), "error", scrapeErr)
	}

	if w.metrics != nil {
		w.metrics.IncItemProcessed(string(status))
	}

	if w.publisher != nil && status != models.StatusFailed {
		if err := w.publisher.PublishItemChecked(ctx, item, updated); err != nil {
			logger.Error("failed to publish item event", "error", err)
		}
	}

	return &Result{Item: updated, Product: product, Err: scrapeErr}, nil
}

// scrape guards the loop against a panicking extractor that escaped the
// router's own recovery.
func (w *Worker) scrape(ctx context.Context, url string) (product *models.ScrapedProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			product = nil
			err = scrapeerr.ExtractionError{Field: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	product, err = w.scraper.RouteAndScrape(ctx, url, w.browser)
	if err == nil && product == nil {
		err = scrapeerr.ExtractionError{Field: "product", Err: errors.New("extractor returned no product")}
	}
	return product, err
}

// classify maps an extraction outcome onto an item update. Only a successful
// extraction touches product fields; a page without a price clears the stored
// one, matching the zero-amount history row written for it.
func classify(product *models.ScrapedProduct, err error, now time.Time) models.ItemUpdate {
	update := models.ItemUpdate{LastCheckedAt: &now}

	switch {
	case err == nil:
		status := models.StatusProcessed
		noError := ""
		update.Status = &status
		update.Name = &product.Name
		update.Price = product.Price
		update.ClearPrice = product.Price == nil
		update.Sizes = nonNil(product.Sizes)
		update.Colors = nonNil(product.Colors)
		update.Images = nonNil(product.Images)
		update.InStock = &product.InStock
		update.Description = &product.Description
		update.LastCheckError = &noError
	case scrapeerr.IsNotFound(err):
		status := models.StatusLinkDead
		inStock := false
		msg := err.Error()
		update.Status = &status
		update.InStock = &inStock
		update.LastCheckError = &msg
	default:
		status := models.StatusFailed
		msg := err.Error()
		update.Status = &status
		update.LastCheckError = &msg
	}

	return update
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
