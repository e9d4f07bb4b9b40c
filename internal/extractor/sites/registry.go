package sites

import (
	"github.com/maltedev/product-extractor/internal/extractor"
)

// Registrations is the static domain table. Domains are normalized hosts:
// no "www.", regional prefixes collapsed.
func Registrations() []extractor.Registration {
	return []extractor.Registration{
		{Name: "amazon", Domains: amazonDomains, New: newAmazon},
		{Name: "ebay", Domains: ebayDomains, New: newEbay},
		{Name: "etsy", Domains: []string{"etsy.com"}, New: newEtsy},
		{Name: "hm", Domains: []string{"hm.com"}, New: newHM},
		{Name: "cos", Domains: []string{"cos.com", "cosstores.com"}, New: newCOS},
		{Name: "patagonia", Domains: []string{"patagonia.com"}, New: newPatagonia},
		{Name: "farfetch", Domains: []string{"farfetch.com"}, New: newFarfetch},
		{Name: "nike", Domains: []string{"nike.com"}, New: newNike},
		{Name: "everlane", Domains: []string{"everlane.com"}, New: newEverlane},
		{Name: "allbirds", Domains: []string{"allbirds.com", "allbirds.co.uk", "allbirds.eu"}, New: newShopifyStore},
		{Name: "gymshark", Domains: []string{"gymshark.com"}, New: newShopifyStore},
		{Name: "zara", Domains: []string{"zara.com"}, Dynamic: true, New: newZara},
		{Name: "uniqlo", Domains: []string{"uniqlo.com"}, Dynamic: true, New: newUniqlo},
		{Name: "lululemon", Domains: []string{"lululemon.com", "lululemon.co.uk"}, Dynamic: true, New: newLululemon},
		{Name: "mango", Domains: []string{"mango.com"}, Dynamic: true, New: newMango},
		{Name: "asos", Domains: []string{"asos.com"}, Dynamic: true, New: newASOS},
	}
}

// NewRegistry builds the registry from the static table.
func NewRegistry() (*extractor.Registry, error) {
	return extractor.NewRegistry(Registrations()...)
}
