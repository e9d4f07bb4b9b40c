package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type challengeMarker struct {
	marker string
	reason string
}

var titleMarkers = []challengeMarker{
	{"captcha", "captcha"},
	{"robot check", "robot check"},
	{"just a moment", "cloudflare challenge"},
	{"attention required", "cloudflare challenge"},
	{"access denied", "access denied"},
	{"pardon our interruption", "bot protection"},
}

// Body markers are specific to interstitials; generic words like "captcha"
// also appear in login widgets of real product pages.
var bodyMarkers = []challengeMarker{
	{"cf-challenge", "cloudflare challenge"},
	{"cf-browser-verification", "cloudflare challenge"},
	{"px-captcha", "perimeterx"},
	{"/errors/validatecaptcha", "captcha"},
	{"pardon our interruption", "bot protection"},
	{"klicke auf die schaltfläche unten", "robot check"},
	{"to discuss automated access to amazon data", "robot check"},
}

// IsChallengePage reports whether the page is an anti-bot interstitial
// instead of product content, and names the detected protection.
func IsChallengePage(title, html string) (string, bool) {
	title = strings.ToLower(title)
	for _, m := range titleMarkers {
		if strings.Contains(title, m.marker) {
			return m.reason, true
		}
	}

	body := strings.ToLower(html)
	for _, m := range bodyMarkers {
		if strings.Contains(body, m.marker) {
			return m.reason, true
		}
	}
	return "", false
}

// TitleOf returns the document title. Markup inside scripts or comments is
// not mistaken for it.
func TitleOf(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
