package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/euskotrips/euskotrips/internal/document"
)

// Category converts a raw category value into the canonical variant.
//
// Strings are split on commas; each fragment is trimmed and NFC-normalized,
// and empty fragments or purely numeric codes such as "0006" are dropped.
// List members are cleaned the same way without splitting. Any other scalar
// becomes a single label of its string form.
func Category(raw any) document.Category {
	switch v := raw.(type) {
	case nil:
		return document.NoCategory()
	case string:
		return document.CategoryOf(splitLabels(v)...)
	case []any:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := ScalarString(item)
			if !ok {
				continue
			}
			if l, ok := cleanLabel(s); ok {
				labels = append(labels, l)
			}
		}
		return document.CategoryOf(labels...)
	default:
		s, ok := ScalarString(v)
		if !ok {
			return document.NoCategory()
		}
		return document.SingleCategory(s)
	}
}

func splitLabels(s string) []string {
	parts := strings.Split(s, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if l, ok := cleanLabel(p); ok {
			labels = append(labels, l)
		}
	}
	return labels
}

func cleanLabel(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || isDigits(s) {
		return "", false
	}
	return norm.NFC.String(s), true
}

// isDigits reports whether s consists only of ASCII decimal digits.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
