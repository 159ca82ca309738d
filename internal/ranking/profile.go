package ranking

import (
	"sort"

	"github.com/euskotrips/euskotrips/internal/document"
)

// Profile is the set of categories, municipalities and territories seen
// across a user's favorites. It is built per request and never shared.
type Profile struct {
	Categories     map[string]struct{}
	Municipalities map[string]struct{}
	Territories    map[string]struct{}
}

// NewProfile returns an empty profile.
func NewProfile() Profile {
	return Profile{
		Categories:     make(map[string]struct{}),
		Municipalities: make(map[string]struct{}),
		Territories:    make(map[string]struct{}),
	}
}

// BuildProfile unions the category labels, municipalities and territories of
// the given favorite documents. Absent fields contribute nothing.
func BuildProfile(favorites []document.Document) Profile {
	p := NewProfile()
	for i := range favorites {
		fav := &favorites[i]
		for _, label := range fav.Category.Labels() {
			p.Categories[label] = struct{}{}
		}
		if m := fav.MunicipalityValue(); m != "" {
			p.Municipalities[m] = struct{}{}
		}
		if t := fav.TerritoryValue(); t != "" {
			p.Territories[t] = struct{}{}
		}
	}
	return p
}

// IsEmpty reports whether the profile holds no value at all.
func (p Profile) IsEmpty() bool {
	return len(p.Categories) == 0 && len(p.Municipalities) == 0 && len(p.Territories) == 0
}

// Summary returns the sorted profile contents, for logging.
func (p Profile) Summary() map[string][]string {
	return map[string][]string{
		"categories":     sortedKeys(p.Categories),
		"municipalities": sortedKeys(p.Municipalities),
		"territories":    sortedKeys(p.Territories),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
