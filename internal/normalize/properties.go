// Package normalize turns raw open-data GeoJSON features into canonical
// documents. Source feeds disagree on key casing and naming, so every lookup
// goes through the case-insensitive accessors on Properties.
package normalize

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Properties is the untyped property bag of a GeoJSON feature.
//
// Lookups are case-insensitive in a limited, predictable way: each candidate
// key is probed as given, then lower-cased, then upper-cased. A value counts
// as present only when it is truthy; nil, "", false, numeric zero and empty
// lists or objects are treated as missing.
type Properties map[string]any

// Pick returns the first truthy value found for the candidate keys, probing
// them in order. It returns nil when no candidate matches.
func (p Properties) Pick(keys ...string) any {
	v, _ := p.lookup(keys)
	return v
}

// PickOr is Pick with a caller supplied default.
func (p Properties) PickOr(def any, keys ...string) any {
	if v, ok := p.lookup(keys); ok {
		return v
	}
	return def
}

// PickString resolves the candidate keys and renders the value as a string.
// It returns "" when nothing matched or the value has no scalar form.
func (p Properties) PickString(keys ...string) string {
	v, ok := p.lookup(keys)
	if !ok {
		return ""
	}
	s, _ := ScalarString(v)
	return s
}

func (p Properties) lookup(keys []string) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	for _, k := range keys {
		for _, candidate := range [3]string{k, strings.ToLower(k), strings.ToUpper(k)} {
			if v, ok := p[candidate]; ok && truthy(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// ScalarString renders a decoded JSON scalar as a string. Whole numbers are
// printed without a fractional part so numeric identifiers stay stable, and
// integer literals keep every digit.
// The boolean result is false for values with no scalar form.
func ScalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return string(t), true
		}
		f, err := t.Float64()
		if err != nil {
			return string(t), true
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
