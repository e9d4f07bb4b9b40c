// Package price turns heterogeneous price text into integer minor units and
// an ISO currency code.
package price

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/maltedev/product-extractor/internal/models"
)

// DefaultCurrency is used when the text carries no currency signal.
const DefaultCurrency = "USD"

// maxDigits bounds accepted numbers so that minor units always fit in int64.
const maxDigits = 15

var (
	numberPattern = regexp.MustCompile(`\d{1,3}(?:[ \x{00a0}\x{202f}]\d{3})+(?:[.,]\d+)?|\d+(?:[.,'’]\d+)*`)
	wordPattern   = regexp.MustCompile(`[A-Za-z]+`)
	salePattern   = regexp.MustCompile(`(?i)\b(?:sale|now|discounted|special|offer|reduced)\b`)
	offPattern    = regexp.MustCompile(`\([^)]*\d\s*%[^)]*\)`)

	hundred = decimal.NewFromInt(100)
)

var dollarPrefixes = map[string]string{
	"US": "USD",
	"HK": "HKD",
	"NZ": "NZD",
	"CA": "CAD",
	"C":  "CAD",
	"AU": "AUD",
	"A":  "AUD",
	"SG": "SGD",
	"S":  "SGD",
	"R":  "BRL",
	"MX": "MXN",
}

var isoCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "RUB": true, "JPY": true, "CNY": true,
	"HKD": true, "CAD": true, "AUD": true, "NZD": true, "CHF": true, "SEK": true,
	"NOK": true, "DKK": true, "PLN": true, "CZK": true, "HUF": true, "INR": true,
	"KRW": true, "SGD": true, "BRL": true, "MXN": true, "TRY": true, "AED": true,
	"SAR": true, "ZAR": true, "ILS": true, "UAH": true, "KZT": true,
}

var symbols = map[rune]string{
	'£': "GBP",
	'€': "EUR",
	'¥': "JPY",
	'￥': "JPY",
	'₽': "RUB",
	'₹': "INR",
	'₩': "KRW",
	'₺': "TRY",
	'₴': "UAH",
	'₪': "ILS",
}

var localWords = []struct {
	word string
	code string
}{
	{"руб", "RUB"},
	{"zł", "PLN"},
	{"Kč", "CZK"},
}

type marker struct {
	start, end int
	code       string
}

type token struct {
	start, end int
	text       string
}

// Parse extracts the currently payable price from text. It is total: any
// input that carries no usable number yields ok=false.
func Parse(text string) (models.PriceInfo, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.PriceInfo{}, false
	}

	tokens := numericTokens(text)
	if len(tokens) == 0 {
		return models.PriceInfo{}, false
	}

	chosen := selectToken(text, tokens)

	amount, ok := toMinorUnits(chosen.text)
	if !ok {
		return models.PriceInfo{}, false
	}

	return models.PriceInfo{
		AmountMinorUnits: amount,
		CurrencyCode:     currencyFor(findCurrencies(text), chosen),
	}, true
}

// FromAmount converts a structured amount such as "45.50" or "1290" with an
// explicit currency code.
func FromAmount(amount, currency string) (models.PriceInfo, bool) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return models.PriceInfo{}, false
	}
	minor, ok := toMinorUnits(amount)
	if !ok {
		return models.PriceInfo{}, false
	}
	return models.PriceInfo{AmountMinorUnits: minor, CurrencyCode: NormalizeCurrency(currency)}, true
}

// FromMinor builds a price from an amount already expressed in minor units.
func FromMinor(minor int64, currency string) models.PriceInfo {
	return models.PriceInfo{AmountMinorUnits: minor, CurrencyCode: NormalizeCurrency(currency)}
}

// NormalizeCurrency maps a code or symbol to an ISO code, defaulting to USD.
func NormalizeCurrency(currency string) string {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return DefaultCurrency
	}
	if upper := strings.ToUpper(currency); isoCodes[upper] {
		return upper
	}
	if markers := findCurrencies(currency); len(markers) > 0 {
		return markers[0].code
	}
	return DefaultCurrency
}

func numericTokens(text string) []token {
	var out []token
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		if isPercentage(text, loc[1]) {
			continue
		}
		out = append(out, token{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]]})
	}
	return out
}

func isPercentage(text string, end int) bool {
	rest := strings.TrimLeft(text[end:], " \u00a0")
	return strings.HasPrefix(rest, "%")
}

// selectToken prefers the price after a sale keyword, then the price after a
// parenthesized percentage-off marker, then the last price in the text.
func selectToken(text string, tokens []token) token {
	if loc := salePattern.FindStringIndex(text); loc != nil {
		if t, ok := firstAfter(tokens, loc[1]); ok {
			return t
		}
	}
	if loc := offPattern.FindStringIndex(text); loc != nil {
		if t, ok := firstAfter(tokens, loc[1]); ok {
			return t
		}
	}
	return tokens[len(tokens)-1]
}

func firstAfter(tokens []token, pos int) (token, bool) {
	for _, t := range tokens {
		if t.start >= pos {
			return t, true
		}
	}
	return token{}, false
}

func toMinorUnits(raw string) (int64, bool) {
	normalized, ok := normalizeNumber(raw)
	if !ok {
		return 0, false
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil || d.IsNegative() {
		return 0, false
	}

	return d.Mul(hundred).Round(0).IntPart(), true
}

// normalizeNumber resolves decimal and grouping separators into a plain
// dot-decimal string.
func normalizeNumber(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'', '’':
			return -1
		}
		return r
	}, raw)

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	var intPart, fracPart string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		sep := lastDot
		if lastComma > lastDot {
			sep = lastComma
		}
		intPart = stripSeparators(cleaned[:sep])
		fracPart = cleaned[sep+1:]
	case lastDot >= 0 || lastComma >= 0:
		sep := lastDot
		sepChar := "."
		if lastComma >= 0 {
			sep = lastComma
			sepChar = ","
		}
		digitsAfter := len(cleaned) - sep - 1
		if strings.Count(cleaned, sepChar) == 1 && digitsAfter >= 1 && digitsAfter <= 2 {
			intPart = cleaned[:sep]
			fracPart = cleaned[sep+1:]
		} else {
			intPart = stripSeparators(cleaned)
		}
	default:
		intPart = cleaned
	}

	if intPart == "" {
		intPart = "0"
	}
	if len(intPart)+len(fracPart) > maxDigits || !allDigits(intPart) || !allDigits(fracPart) {
		return "", false
	}
	if fracPart == "" {
		return intPart, true
	}
	return intPart + "." + fracPart, true
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func findCurrencies(text string) []marker {
	var out []marker

	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		if loc[1] < len(text) && text[loc[1]] == '$' {
			if code, ok := dollarPrefixes[word]; ok {
				out = append(out, marker{start: loc[0], end: loc[1] + 1, code: code})
				continue
			}
		}
		if isoCodes[word] {
			out = append(out, marker{start: loc[0], end: loc[1], code: word})
		}
	}

	for _, lw := range localWords {
		offset := 0
		for {
			idx := strings.Index(text[offset:], lw.word)
			if idx < 0 {
				break
			}
			start := offset + idx
			out = append(out, marker{start: start, end: start + len(lw.word), code: lw.code})
			offset = start + len(lw.word)
		}
	}

	for i, r := range text {
		if r == '$' {
			if !covered(out, i) {
				out = append(out, marker{start: i, end: i + 1, code: "USD"})
			}
			continue
		}
		if code, ok := symbols[r]; ok {
			out = append(out, marker{start: i, end: i + len(string(r)), code: code})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func covered(markers []marker, pos int) bool {
	for _, m := range markers {
		if pos >= m.start && pos < m.end {
			return true
		}
	}
	return false
}

// currencyFor picks the closest marker before the token, then the closest
// one after it.
func currencyFor(markers []marker, t token) string {
	code := ""
	for _, m := range markers {
		if m.end <= t.start {
			code = m.code
		}
	}
	if code != "" {
		return code
	}
	for _, m := range markers {
		if m.start >= t.end {
			return m.code
		}
	}
	return DefaultCurrency
}
