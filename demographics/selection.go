package demographics

// Selection is the transient summary-view state: which category is shown and
// which entry is highlighted. It never mutates the underlying Analysis.
type Selection struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DefaultSelection computes the initial selection: the highest-confidence
// race entry, with its label formatted for display. The second return value
// is false when the race category is unavailable.
func DefaultSelection(a Analysis) (Selection, bool) {
	best, ok := a.HighestConfidence(CategoryRace)
	if !ok {
		return Selection{Category: CategoryRace}, false
	}
	return Selection{
		Category:   CategoryRace,
		Label:      FormatLabel(best.Label),
		Confidence: best.Confidence,
	}, true
}

// Pick updates the selection to the given entry.
func (s *Selection) Pick(category, label string, confidence float64) {
	s.Category = category
	s.Label = label
	s.Confidence = confidence
}
