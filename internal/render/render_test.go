package render

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

const productURL = "https://shop.example.com/p/1"

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newTestFetcher(t *testing.T, status int, body string) *StaticFetcher {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, productURL, htmlResponder(status, body))
	return NewStaticFetcher(StaticOptions{Transport: transport, Timeout: 5 * time.Second}, nil)
}

func TestStrategy(t *testing.T) {
	s := NewStrategy([]string{"zara.com", " Uniqlo.com "}, []string{"asos.com"})

	assert.True(t, s.RequiresDynamic("zara.com"))
	assert.True(t, s.RequiresDynamic("uniqlo.com"))
	assert.True(t, s.RequiresDynamic("asos.com"))
	assert.False(t, s.RequiresDynamic("amazon.com"))
	assert.Equal(t, []string{"asos.com", "uniqlo.com", "zara.com"}, s.Domains())

	var empty *Strategy
	assert.False(t, empty.RequiresDynamic("zara.com"))
}

func TestIsChallengePage(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		html    string
		blocked bool
		reason  string
	}{
		{"product page", "Wool Runner", "<html><body>Sign in to continue or solve captcha later</body></html>", false, ""},
		{"cloudflare title", "Just a moment...", "", true, "cloudflare challenge"},
		{"amazon robot check", "Amazon.com", "<p>To discuss automated access to Amazon data please contact</p>", true, "robot check"},
		{"perimeterx", "", `<div id="px-captcha"></div>`, true, "perimeterx"},
		{"captcha title", "Captcha", "", true, "captcha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, blocked := IsChallengePage(tt.title, tt.html)
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestTitleOf(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"plain", "<html><head><TITLE lang=en>\n Hello </TITLE></head></html>", "Hello"},
		{"missing", "<html></html>", ""},
		{"title markup inside a script", `<html><head><script>document.write("<title>Just a moment...</title>")</script><title>Linen Shirt</title></head></html>`, "Linen Shirt"},
		{"title markup inside a comment", `<html><head><!-- <title>Captcha</title> --><title>Linen Shirt</title></head></html>`, "Linen Shirt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, TitleOf(doc))
		})
	}
	assert.Empty(t, TitleOf(nil))
}

func TestStaticFetcher_ScriptTitleIsNotAChallenge(t *testing.T) {
	body := `<html><head><script>var shell = "<title>Just a moment...</title>";</script><title>Linen Shirt</title></head><body></body></html>`
	f := newTestFetcher(t, http.StatusOK, body)

	page, err := f.Fetch(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", TitleOf(page.Doc))
}

func TestStaticFetcher_Fetch(t *testing.T) {
	body := "<html><head><title>Linen Shirt</title></head><body><h1>Linen Shirt</h1></body></html>"
	f := newTestFetcher(t, http.StatusOK, body)

	page, err := f.Fetch(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, productURL, page.URL)
	assert.Equal(t, body, page.HTML)
	require.NotNil(t, page.Doc)
	assert.Equal(t, "Linen Shirt", page.Doc.Find("h1").Text())
}

func TestStaticFetcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   string
	}{
		{"not found", http.StatusNotFound, "gone", "not_found"},
		{"gone", http.StatusGone, "gone", "not_found"},
		{"forbidden", http.StatusForbidden, "no", "blocked"},
		{"rate limited", http.StatusTooManyRequests, "slow down", "blocked"},
		{"server error", http.StatusInternalServerError, "oops", "other"},
		{"challenge page", http.StatusOK, "<html><head><title>Attention Required! | Cloudflare</title></head></html>", "blocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(t, tt.status, tt.body)
			page, err := f.Fetch(context.Background(), productURL)
			require.Error(t, err)
			assert.Nil(t, page)
			assert.Equal(t, tt.kind, scrapeerr.Kind(err))
		})
	}
}

func TestStaticFetcher_NotFoundCarriesURL(t *testing.T) {
	f := newTestFetcher(t, http.StatusNotFound, "")

	_, err := f.Fetch(context.Background(), productURL)
	var notFound scrapeerr.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, productURL, notFound.URL)
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}

func TestStaticFetcher_CanceledContext(t *testing.T) {
	f := newTestFetcher(t, http.StatusOK, "<html></html>")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, productURL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticFetcher_Deadline(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, productURL,
		htmlResponder(http.StatusOK, "<html></html>").Delay(time.Second))
	f := NewStaticFetcher(StaticOptions{Transport: transport, Timeout: 5 * time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, productURL)
	require.Error(t, err)
	assert.Equal(t, "timeout", scrapeerr.Kind(err))
}

func TestNewStaticFetcher_Defaults(t *testing.T) {
	f := NewStaticFetcher(StaticOptions{}, nil)
	assert.Equal(t, DefaultUserAgent, f.opts.UserAgent)
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
	assert.NotEmpty(t, f.opts.AcceptLanguage)
}
