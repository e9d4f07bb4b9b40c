package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/config"
	"github.com/maltedev/product-extractor/internal/render"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 60*time.Second, opts.NavigationTimeout)
	assert.Equal(t, 2*time.Second, opts.SettleDelay)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, render.DefaultUserAgent, opts.UserAgent)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.BrowserConfig{
		Headless:          false,
		NavigationTimeout: 30 * time.Second,
		Locale:            "de-DE",
		ViewportWidth:     1280,
		Proxy:             "http://proxy:3128",
	})

	assert.False(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.NavigationTimeout)
	assert.Equal(t, 2*time.Second, opts.SettleDelay)
	assert.Equal(t, "de-DE", opts.Locale)
	assert.Equal(t, 1920, opts.ViewportWidth, "width without height keeps the default viewport")
	assert.Equal(t, render.DefaultUserAgent, opts.UserAgent)
	assert.Equal(t, "http://proxy:3128", opts.ProxyServer)
}

func TestNavigationTimeout(t *testing.T) {
	assert.Equal(t, time.Minute, navigationTimeout(context.Background(), time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := navigationTimeout(ctx, time.Minute)
	assert.LessOrEqual(t, got, 5*time.Second)
	assert.Greater(t, got, time.Duration(0))

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, time.Millisecond, navigationTimeout(expired, time.Minute))
}

func TestSleep(t *testing.T) {
	require.NoError(t, sleep(context.Background(), 0))
	require.NoError(t, sleep(context.Background(), time.Millisecond))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(canceled, time.Hour), context.Canceled)

	deadline, cancelDeadline := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancelDeadline()
	err := sleep(deadline, time.Hour)
	assert.Equal(t, "timeout", scrapeerr.Kind(err))
}

func TestPageError(t *testing.T) {
	timeout := pageError("wait", "#sizes", fmt.Errorf("locator: %w", playwright.ErrTimeout))
	var te scrapeerr.TimeoutError
	require.ErrorAs(t, timeout, &te)
	assert.Equal(t, "wait #sizes", te.Op)

	other := pageError("click", "#add", errors.New("target closed"))
	assert.False(t, errors.As(other, &te))
	assert.Contains(t, other.Error(), "click #add")
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 5000.0, *millis(0))
	assert.Equal(t, 1500.0, *millis(1500*time.Millisecond))
}
