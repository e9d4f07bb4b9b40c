// Package stock infers a boolean in-stock flag from size availability,
// structured data and visible page text.
package stock

import (
	"regexp"
	"strings"

	"github.com/maltedev/product-extractor/internal/models"
)

// Availability is a structured-data availability value.
type Availability int

const (
	Unknown Availability = iota
	InStock
	OutOfStock
)

var (
	negativePattern = regexp.MustCompile(`(?i)sold[\s-]*out|out[\s-]+of[\s-]+stock|\bunavailable\b|discontinued|no longer available|currently not available|nicht verfügbar|ausverkauft|schema\.org/(?:OutOfStock|SoldOut|Discontinued)|\b(?:OutOfStock|SoldOut)\b`)
	positivePattern = regexp.MustCompile(`(?i)\bin[\s-]+stock\b|auf lager|schema\.org/(?:InStock|LimitedAvailability|OnlineOnly|PreOrder)|\bInStock\b`)
)

// Signals carries the page evidence available to the resolver.
type Signals struct {
	// Structured is the availability read from JSON-LD or a storefront's
	// serialized product object.
	Structured Availability
	// Text is visible page text (or the raw fragment around the buy box).
	Text string
	// AddToCartEnabled is true when an enabled add-to-cart/bag control exists.
	AddToCartEnabled bool
	// Optimistic is the fallback when nothing else decides.
	Optimistic bool
}

// Infer applies the precedence rules and always returns a decision.
func Infer(sizes []models.Size, s Signals) bool {
	inStock, _ := Resolve(sizes, s)
	return inStock
}

// Resolve is like Infer but also reports whether an explicit signal decided
// the result. decided is false when the Optimistic fallback was used.
func Resolve(sizes []models.Size, s Signals) (inStock bool, decided bool) {
	for _, size := range sizes {
		if size.InStock {
			return true, true
		}
	}

	switch s.Structured {
	case InStock:
		return true, true
	case OutOfStock:
		return false, true
	}

	if negativePattern.MatchString(s.Text) {
		return false, true
	}

	if s.AddToCartEnabled || positivePattern.MatchString(s.Text) {
		return true, true
	}

	return s.Optimistic, false
}

// ParseAvailability maps schema.org availability values and common storefront
// spellings ("in_stock", "AVAILABLE", "sold-out") to an Availability.
func ParseAvailability(value string) Availability {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Unknown
	}
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	v = strings.NewReplacer("_", "", "-", "", " ", "").Replace(v)

	switch v {
	case "instock", "available", "limitedavailability", "onlineonly", "instoreonly", "preorder", "presale", "true", "buyable":
		return InStock
	case "outofstock", "soldout", "discontinued", "unavailable", "notavailable", "false":
		return OutOfStock
	}
	return Unknown
}

// FromBool converts an explicit boolean flag into an Availability.
func FromBool(available bool) Availability {
	if available {
		return InStock
	}
	return OutOfStock
}
