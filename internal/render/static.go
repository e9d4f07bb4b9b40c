package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is a fetched document. Doc is the parsed HTML, shared with the
// extractor so the body is parsed once.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
	Doc        *goquery.Document
}

type StaticOptions struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// Transport replaces the collector's HTTP transport (tests use httpmock).
	Transport http.RoundTripper
}

func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: "en-US,en;q=0.9,de;q=0.8",
		Timeout:        30 * time.Second,
	}
}

// StaticFetcher fetches raw HTML with a fresh colly collector per request so
// that no cookies or visited state leak between items.
type StaticFetcher struct {
	opts   StaticOptions
	logger *slog.Logger
}

func NewStaticFetcher(opts StaticOptions, logger *slog.Logger) *StaticFetcher {
	defaults := DefaultStaticOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = defaults.AcceptLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticFetcher{opts: opts, logger: logger.With("component", "static_fetcher")}
}

type fetchResult struct {
	page *Page
	err  error
}

// Fetch performs one GET. 404/410 map to NotFoundError, 403/429 and
// challenge pages to BlockedError, an expired request timeout to
// TimeoutError.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan fetchResult, 1)
	go func() {
		page, err := f.visit(url)
		done <- fetchResult{page: page, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, scrapeerr.TimeoutError{Op: "fetch " + url, Err: ctx.Err()}
		}
		return nil, ctx.Err()
	case res := <-done:
		return res.page, res.err
	}
}

func (f *StaticFetcher) visit(url string) (*Page, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.opts.Timeout)
	if f.opts.Transport != nil {
		c.WithTransport(f.opts.Transport)
	}

	var (
		page    *Page
		failure error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", f.opts.AcceptLanguage)
	})

	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       string(r.Body),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if classified := scrapeerr.FromStatus(status, url); classified != nil {
			failure = classified
			return
		}
		if scrapeerr.IsTimeout(err) {
			failure = scrapeerr.TimeoutError{Op: "fetch " + url, Err: err}
			return
		}
		failure = fmt.Errorf("fetch %s: %w", url, err)
	})

	start := time.Now()
	visitErr := c.Visit(url)

	if failure != nil {
		f.logger.Warn("static fetch failed", "url", url, "error", failure, "duration", time.Since(start))
		return nil, failure
	}
	if visitErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, visitErr)
	}
	if page == nil {
		return nil, fmt.Errorf("fetch %s: empty response", url)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, scrapeerr.ExtractionError{Field: "document", Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	page.Doc = doc

	if reason, blocked := IsChallengePage(TitleOf(doc), page.HTML); blocked {
		return nil, scrapeerr.BlockedError{StatusCode: page.StatusCode, Reason: reason}
	}

	f.logger.Debug("static fetch complete", "url", url, "status", page.StatusCode, "bytes", len(page.HTML), "duration", time.Since(start))
	return page, nil
}
