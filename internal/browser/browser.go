// Package browser owns the shared headless Chromium and hands out one
// isolated page per dynamic request.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/product-extractor/internal/config"
	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/render"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	TimezoneID        string
	Locale            string
	ProxyServer       string
	ExtraHeaders      map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		NavigationTimeout: 60 * time.Second,
		SettleDelay:       2 * time.Second,
		UserAgent:         render.DefaultUserAgent,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		TimezoneID:        "Europe/Berlin",
		Locale:            "en-US",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9,de;q=0.8",
			"DNT":             "1",
		},
	}
}

// OptionsFromConfig overlays the configured values on DefaultOptions. Zero
// values keep the defaults.
func OptionsFromConfig(cfg config.BrowserConfig) *Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	if cfg.NavigationTimeout > 0 {
		opts.NavigationTimeout = cfg.NavigationTimeout
	}
	if cfg.SettleDelay > 0 {
		opts.SettleDelay = cfg.SettleDelay
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts.ViewportWidth = cfg.ViewportWidth
		opts.ViewportHeight = cfg.ViewportHeight
	}
	if cfg.Locale != "" {
		opts.Locale = cfg.Locale
	}
	if cfg.TimezoneID != "" {
		opts.TimezoneID = cfg.TimezoneID
	}
	opts.ProxyServer = cfg.Proxy
	return opts
}

// New starts playwright and launches Chromium. The caller must Close it.
func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// Open navigates a fresh context to url and waits for network idle plus the
// settle delay. The returned page is closed when ctx ends or Close is called,
// whichever comes first.
func (b *Browser) Open(ctx context.Context, url string) (extractor.PageHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(b.opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(b.opts.Locale),
		TimezoneId:        playwright.String(b.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		ExtraHttpHeaders: b.opts.ExtraHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	h := &pageHandle{page: page, context: bctx}
	h.stop = context.AfterFunc(ctx, func() { _ = h.Close() })

	if err := b.navigate(ctx, h, url); err != nil {
		_ = h.Close()
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.As(err, new(scrapeerr.TimeoutError)) {
			return nil, ctxErr
		}
		return nil, err
	}
	return h, nil
}

func (b *Browser) navigate(ctx context.Context, h *pageHandle, url string) error {
	timeout := navigationTimeout(ctx, b.opts.NavigationTimeout)
	start := time.Now()

	resp, err := h.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return scrapeerr.TimeoutError{Op: "navigate " + url, Err: err}
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if resp != nil {
		if err := scrapeerr.FromStatus(resp.Status(), url); err != nil {
			return err
		}
	}

	if err := sleep(ctx, b.opts.SettleDelay); err != nil {
		return err
	}

	if err := b.checkChallenge(h.page); err != nil {
		return err
	}

	b.logger.Debug("page ready", "url", url, "final_url", h.page.URL(), "duration", time.Since(start))
	return nil
}

var continueButtons = []string{
	`button:has-text("Weiter shoppen")`,
	`button:has-text("Continue shopping")`,
	`input[type="submit"][value*="Weiter"]`,
	`.a-button-primary`,
}

// checkChallenge reports an anti-bot interstitial as BlockedError. A
// soft interstitial with a single continue button is clicked through once.
func (b *Browser) checkChallenge(page playwright.Page) error {
	title, err := page.Title()
	if err != nil {
		return fmt.Errorf("failed to get page title: %w", err)
	}
	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("failed to get page content: %w", err)
	}

	reason, blocked := render.IsChallengePage(title, content)
	if !blocked {
		return nil
	}

	if reason == "robot check" && b.clickThrough(page) {
		title, _ = page.Title()
		content, _ = page.Content()
		if _, stillBlocked := render.IsChallengePage(title, content); !stillBlocked {
			b.logger.Info("passed soft interstitial", "url", page.URL())
			return nil
		}
	}

	b.logger.Warn("challenge page detected", "url", page.URL(), "reason", reason)
	return scrapeerr.BlockedError{Reason: reason}
}

func (b *Browser) clickThrough(page playwright.Page) bool {
	for _, selector := range continueButtons {
		button := page.Locator(selector).First()
		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := button.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
			b.logger.Debug("continue button click failed", "selector", selector, "error", err)
			continue
		}
		_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(10000),
		})
		return true
	}
	return false
}

func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if b.browser != nil {
			if err := b.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}
		if b.pw != nil {
			if err := b.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
			}
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

// navigationTimeout caps def by the time left on ctx.
func navigationTimeout(ctx context.Context, def time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return def
	}
	if left := time.Until(deadline); left < def {
		if left < time.Millisecond {
			return time.Millisecond
		}
		return left
	}
	return def
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return scrapeerr.TimeoutError{Op: "settle", Err: ctx.Err()}
		}
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pageHandle adapts a playwright page to extractor.PageHandle.
type pageHandle struct {
	page    playwright.Page
	context playwright.BrowserContext
	stop    func() bool

	closeOnce sync.Once
	closeErr  error
}

func (h *pageHandle) URL() string {
	return h.page.URL()
}

func (h *pageHandle) Content() (string, error) {
	html, err := h.page.Content()
	if err != nil {
		return "", pageError("content", "", err)
	}
	return html, nil
}

func (h *pageHandle) Exists(selector string) (bool, error) {
	count, err := h.page.Locator(selector).Count()
	if err != nil {
		return false, pageError("count", selector, err)
	}
	return count > 0, nil
}

func (h *pageHandle) IsEnabled(selector string) (bool, error) {
	loc, err := h.present(selector)
	if err != nil {
		return false, err
	}
	enabled, err := loc.IsEnabled()
	if err != nil {
		return false, pageError("is_enabled", selector, err)
	}
	return enabled, nil
}

func (h *pageHandle) Click(selector string, timeout time.Duration) error {
	loc, err := h.present(selector)
	if err != nil {
		return err
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: millis(timeout)}); err != nil {
		return pageError("click", selector, err)
	}
	return nil
}

func (h *pageHandle) WaitVisible(selector string, timeout time.Duration) error {
	err := h.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	if err != nil {
		return pageError("wait", selector, err)
	}
	return nil
}

func (h *pageHandle) Press(key string) error {
	if err := h.page.Keyboard().Press(key); err != nil {
		return pageError("press", key, err)
	}
	return nil
}

func (h *pageHandle) Evaluate(expression string) (any, error) {
	v, err := h.page.Evaluate(expression)
	if err != nil {
		return nil, pageError("evaluate", "", err)
	}
	return v, nil
}

func (h *pageHandle) Close() error {
	h.closeOnce.Do(func() {
		if h.stop != nil {
			h.stop()
		}
		var errs []error
		if err := h.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
		if err := h.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}

func (h *pageHandle) present(selector string) (playwright.Locator, error) {
	loc := h.page.Locator(selector).First()
	count, err := loc.Count()
	if err != nil {
		return nil, pageError("count", selector, err)
	}
	if count == 0 {
		return nil, scrapeerr.ExtractionError{Field: selector, Err: scrapeerr.ErrElementMissing}
	}
	return loc, nil
}

func millis(d time.Duration) *float64 {
	if d <= 0 {
		d = extractor.DefaultActionTimeout
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// pageError maps playwright failures onto the scrape taxonomy.
func pageError(op, target string, err error) error {
	label := op
	if target != "" {
		label = op + " " + target
	}
	if errors.Is(err, playwright.ErrTimeout) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return scrapeerr.TimeoutError{Op: label, Err: err}
	}
	return fmt.Errorf("%s: %w", label, err)
}
