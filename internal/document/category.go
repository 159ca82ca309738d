package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CategoryKind discriminates the Category variant.
type CategoryKind int

// Category variants.
const (
	CategoryAbsent CategoryKind = iota
	CategorySingle
	CategoryMany
)

// ErrInvalidCategory is returned when a stored category is neither null, a
// string nor an array of strings.
var ErrInvalidCategory = errors.New("category must be null, a string or an array of strings")

// Category is the tagged variant Absent | Single(label) | Many(labels).
// The zero value is Absent. Many holds at least two distinct labels in
// insertion order.
type Category struct {
	kind   CategoryKind
	labels []string
}

// NoCategory returns the absent category.
func NoCategory() Category {
	return Category{}
}

// SingleCategory returns a category holding one label. An empty label yields
// the absent category.
func SingleCategory(label string) Category {
	if label == "" {
		return Category{}
	}
	return Category{kind: CategorySingle, labels: []string{label}}
}

// CategoryOf builds a category from labels, removing empty labels and
// duplicates while keeping first-seen order. Zero labels give Absent, one
// gives Single and more give Many.
func CategoryOf(labels ...string) Category {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	switch len(out) {
	case 0:
		return Category{}
	case 1:
		return Category{kind: CategorySingle, labels: out}
	default:
		return Category{kind: CategoryMany, labels: out}
	}
}

// Kind reports which variant c holds.
func (c Category) Kind() CategoryKind {
	return c.kind
}

// IsAbsent reports whether c holds no label.
func (c Category) IsAbsent() bool {
	return c.kind == CategoryAbsent
}

// Labels returns a copy of the labels held by c (empty for Absent).
func (c Category) Labels() []string {
	if len(c.labels) == 0 {
		return nil
	}
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Intersects reports whether any label of c is in set.
func (c Category) Intersects(set map[string]struct{}) bool {
	for _, l := range c.labels {
		if _, ok := set[l]; ok {
			return true
		}
	}
	return false
}

// String renders the category for logs.
func (c Category) String() string {
	switch c.kind {
	case CategorySingle:
		return c.labels[0]
	case CategoryMany:
		return fmt.Sprintf("%v", c.labels)
	default:
		return "<none>"
	}
}

// MarshalJSON encodes Absent as null, Single as a string and Many as an array.
func (c Category) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CategorySingle:
		return json.Marshal(c.labels[0])
	case CategoryMany:
		return json.Marshal(c.labels)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a string or an array of strings.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*c = Category{}
	case string:
		*c = SingleCategory(v)
	case []any:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return ErrInvalidCategory
			}
			labels = append(labels, s)
		}
		*c = CategoryOf(labels...)
	default:
		return ErrInvalidCategory
	}
	return nil
}
