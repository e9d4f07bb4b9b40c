package extractor

import (
	"fmt"
	"sort"
	"strings"
)

// Factory builds an extractor for one request.
type Factory func(Input) Extractor

// Registration binds a variant to the normalized domains it serves.
type Registration struct {
	Name    string
	Domains []string
	// Dynamic variants need a live page because their data is injected
	// client-side or hidden behind interaction.
	Dynamic bool
	New     Factory
}

// Registry is the read-only domain table built at process start.
type Registry struct {
	byDomain map[string]Registration
}

// NewRegistry indexes the registrations. A domain claimed twice is an error.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{byDomain: make(map[string]Registration)}
	for _, reg := range regs {
		if reg.New == nil {
			return nil, fmt.Errorf("registration %q has no factory", reg.Name)
		}
		if len(reg.Domains) == 0 {
			return nil, fmt.Errorf("registration %q has no domains", reg.Name)
		}
		for _, domain := range reg.Domains {
			domain = strings.ToLower(strings.TrimSpace(domain))
			if existing, ok := r.byDomain[domain]; ok {
				return nil, fmt.Errorf("domain %q registered by both %q and %q", domain, existing.Name, reg.Name)
			}
			r.byDomain[domain] = reg
		}
	}
	return r, nil
}

// MustNewRegistry panics on a malformed table.
func MustNewRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(domain string) (Registration, bool) {
	reg, ok := r.byDomain[domain]
	return reg, ok
}

// Domains lists every registered domain in sorted order.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.byDomain))
	for domain := range r.byDomain {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// DynamicDomains lists the domains whose variant needs a browser.
func (r *Registry) DynamicDomains() []string {
	var out []string
	for _, domain := range r.Domains() {
		if r.byDomain[domain].Dynamic {
			out = append(out, domain)
		}
	}
	return out
}
