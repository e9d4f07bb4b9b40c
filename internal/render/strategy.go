// Package render decides how a page is obtained (plain HTTP or a headless
// browser) and implements the static path.
package render

import (
	"sort"
	"strings"
)

// Strategy is the static allow-list of domains whose essential data only
// exists after client-side rendering.
type Strategy struct {
	dynamic map[string]bool
}

// NewStrategy merges any number of domain lists into one allow-list.
func NewStrategy(domainLists ...[]string) *Strategy {
	s := &Strategy{dynamic: make(map[string]bool)}
	for _, list := range domainLists {
		for _, domain := range list {
			domain = strings.ToLower(strings.TrimSpace(domain))
			if domain != "" {
				s.dynamic[domain] = true
			}
		}
	}
	return s
}

// RequiresDynamic reports whether domain must be rendered in a browser.
func (s *Strategy) RequiresDynamic(domain string) bool {
	if s == nil {
		return false
	}
	return s.dynamic[domain]
}

// Domains lists the allow-list in sorted order.
func (s *Strategy) Domains() []string {
	out := make([]string, 0, len(s.dynamic))
	for d := range s.dynamic {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
