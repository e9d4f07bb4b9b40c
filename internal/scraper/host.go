package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

// collapsible first labels that select a region or channel of the same shop.
var channelLabels = map[string]bool{
	"www2":  true,
	"m":     true,
	"shop":  true,
	"store": true,
}

// ParseProductURL accepts absolute http(s) URLs only.
func ParseProductURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scrapeerr.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", scrapeerr.ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", scrapeerr.ErrInvalidURL)
	}
	return u, nil
}

// NormalizeHost maps a hostname to its registry key: lowercase, no "www.",
// and a leading regional or channel label dropped while a registrable domain
// remains, so "us.brand.com" and "www2.hm.com" both resolve to the brand.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	host = strings.TrimPrefix(host, "www.")

	first, rest, ok := strings.Cut(host, ".")
	if !ok {
		return host
	}
	if len(first) != 2 && !channelLabels[first] {
		return host
	}
	if suffix, _ := publicsuffix.PublicSuffix(rest); suffix == rest {
		return host
	}
	return rest
}
