package demographics

import "strings"

// Recognized demographic categories.
const (
	CategoryAge  = "age"
	CategorySex  = "sex"
	CategoryRace = "race"
)

// Categories lists the recognized categories in display order.
var Categories = []string{CategoryAge, CategorySex, CategoryRace}

// Analysis is the normalized output of the remote analysis call: a mapping of
// category name to label confidences in [0,1]. Confidences are relative
// weights and need not sum to 1. A missing category means that facet is
// unavailable; callers must treat it as a display gap, not an error.
type Analysis map[string]map[string]float64

// Category returns the label confidences for a category, or nil if the
// category is unavailable.
func (a Analysis) Category(name string) map[string]float64 {
	if a == nil {
		return nil
	}
	return a[name]
}

// Has reports whether the category is present with at least one label.
func (a Analysis) Has(name string) bool {
	return len(a.Category(name)) > 0
}

// IsEmpty reports whether no recognized category carries any labels.
func (a Analysis) IsEmpty() bool {
	for _, category := range Categories {
		if a.Has(category) {
			return false
		}
	}
	return true
}

// FormatLabel title-cases a raw mapping key for display, e.g.
// "south east asian" -> "South East Asian".
func FormatLabel(raw string) string {
	words := strings.Split(raw, " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// MatchLabel resolves a display label (possibly title-cased) back to the raw
// mapping key of a category and returns its confidence. Matching is
// case-insensitive so formatted labels round-trip to their entries.
func (a Analysis) MatchLabel(category, label string) (string, float64, bool) {
	for raw, confidence := range a.Category(category) {
		if strings.EqualFold(raw, label) {
			return raw, confidence, true
		}
	}
	return "", 0, false
}
