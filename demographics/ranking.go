package demographics

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Prediction is one ranked entry of a category.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// HighestConfidence returns the entry with the maximum confidence in a
// category. Ties resolve alphabetically by label so the result is
// deterministic. The second return value is false when the category is
// unavailable.
func (a Analysis) HighestConfidence(category string) (Prediction, bool) {
	labels := a.Category(category)
	if len(labels) == 0 {
		return Prediction{}, false
	}

	keys := make([]string, 0, len(labels))
	for label := range labels {
		keys = append(keys, label)
	}
	sort.Strings(keys)

	best := Prediction{Label: keys[0], Confidence: labels[keys[0]]}
	for _, label := range keys[1:] {
		if labels[label] > best.Confidence {
			best = Prediction{Label: label, Confidence: labels[label]}
		}
	}
	return best, true
}

// RankedList returns the category entries ordered for display: descending by
// confidence, except the age category which is ordered by the numeric lower
// bound of the range label ("3-9" before "10-19"). Age labels with no
// parseable lower bound sort last.
func (a Analysis) RankedList(category string) []Prediction {
	labels := a.Category(category)
	if len(labels) == 0 {
		return nil
	}

	ranked := make([]Prediction, 0, len(labels))
	for label, confidence := range labels {
		ranked = append(ranked, Prediction{Label: label, Confidence: confidence})
	}

	if category == CategoryAge {
		sort.Slice(ranked, func(i, j int) bool {
			bi, bj := ageLowerBound(ranked[i].Label), ageLowerBound(ranked[j].Label)
			if bi != bj {
				return bi < bj
			}
			return ranked[i].Label < ranked[j].Label
		})
		return ranked
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Label < ranked[j].Label
	})
	return ranked
}

// ageLowerBound parses the numeric lower bound of an age-range label such as
// "3-9", "20+" or "70". Unparseable labels return +Inf so they sort last.
func ageLowerBound(label string) float64 {
	lower := label
	if idx := strings.Index(label, "-"); idx >= 0 {
		lower = label[:idx]
	}
	lower = strings.TrimSuffix(strings.TrimSpace(lower), "+")
	value, err := strconv.ParseFloat(lower, 64)
	if err != nil {
		return math.Inf(1)
	}
	return value
}
