package extractor

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NextData decodes the Next.js __NEXT_DATA__ payload embedded in the page.
func NextData(doc *goquery.Document) (map[string]any, bool) {
	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false
	}
	return data, true
}

// Lookup walks a decoded JSON value along a path of object keys.
func Lookup(v any, path ...string) (any, bool) {
	current := v
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// FindObject returns the first object, in depth-first order with sorted keys,
// that carries every one of keys. Sorting keeps results stable between runs.
func FindObject(v any, keys ...string) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		if hasAll(t, keys) {
			return t, true
		}
		names := make([]string, 0, len(t))
		for k := range t {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if found, ok := FindObject(t[k], keys...); ok {
				return found, true
			}
		}
	case []any:
		for _, item := range t {
			if found, ok := FindObject(item, keys...); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func hasAll(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// String reads a string field from a decoded object.
func String(obj map[string]any, key string) string {
	return stringValue(obj[key])
}

// Objects returns the object elements of a decoded array field.
func Objects(obj map[string]any, key string) []map[string]any {
	items, _ := obj[key].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Number reads a numeric field, accepting JSON numbers and numeric strings.
func Number(obj map[string]any, key string) string {
	return numberString(obj[key])
}

// Bool reads a boolean field; ok is false when the field is absent or not a
// boolean.
func Bool(obj map[string]any, key string) (value bool, ok bool) {
	value, ok = obj[key].(bool)
	return value, ok
}
