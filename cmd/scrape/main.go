// Command scrape routes one or more product URLs through the extractor and
// prints the results as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/product-extractor/internal/browser"
	"github.com/maltedev/product-extractor/internal/config"
	"github.com/maltedev/product-extractor/internal/extractor/sites"
	"github.com/maltedev/product-extractor/internal/logging"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/ratelimit"
	"github.com/maltedev/product-extractor/internal/render"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
	"github.com/maltedev/product-extractor/internal/scraper"
)

type result struct {
	URL      string                 `json:"url"`
	Product  *models.ScrapedProduct `json:"product,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Kind     string                 `json:"error_kind,omitempty"`
}

func main() {
	os.Exit(run())
}

// run returns the exit code so that deferred cleanup, the browser above all,
// happens before the process exits.
func run() int {
	var (
		static   = flag.Bool("static", false, "Use the generic extractor on the static HTML for any domain")
		noBrowse = flag.Bool("no-browser", false, "Do not start a browser; dynamic domains fail")
		headless = flag.Bool("headless", true, "Run browser in headless mode")
		delay    = flag.Duration("delay", 3*time.Second, "Pause between URLs")
		timeout  = flag.Duration("timeout", 2*time.Minute, "Upper bound per URL")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] URL...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, "text")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := sites.NewRegistry()
	if err != nil {
		logger.Error("failed to build extractor registry", "error", err)
		return 1
	}
	strategy := render.NewStrategy(registry.DynamicDomains(), cfg.Render.DynamicDomains)
	fetcher := render.NewStaticFetcher(render.StaticOptions{
		UserAgent:      cfg.Fetch.UserAgent,
		AcceptLanguage: cfg.Fetch.AcceptLanguage,
		Timeout:        cfg.Fetch.Timeout,
	}, logger)
	router := scraper.NewRouter(registry, strategy, fetcher, scraper.WithLogger(logger))

	var pages scraper.Browser
	if !*static && !*noBrowse {
		opts := browser.OptionsFromConfig(cfg.Browser)
		opts.Headless = *headless
		b, err := browser.New(opts, logger)
		if err != nil {
			logger.Error("failed to initialize browser", "error", err)
			return 1
		}
		defer b.Close()
		pages = b
	}

	limiter := ratelimit.NewSimpleRateLimiter(*delay, *delay)
	results := make([]result, 0, flag.NArg())

	for _, rawURL := range flag.Args() {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		urlCtx, cancel := context.WithTimeout(ctx, *timeout)
		var product *models.ScrapedProduct
		if *static {
			product, err = router.ScrapeProductFromURL(urlCtx, rawURL)
		} else {
			product, err = router.RouteAndScrape(urlCtx, rawURL, pages)
		}
		cancel()

		res := result{URL: rawURL, Product: product}
		if product != nil {
			res.Warnings = product.Validate()
		}
		if err != nil {
			res.Error = err.Error()
			res.Kind = scrapeerr.Kind(err)
			logger.Warn("extraction failed", "url", rawURL, "kind", res.Kind, "error", err)
		}
		results = append(results, res)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Error("failed to write results", "error", err)
		return 1
	}
	return 0
}
