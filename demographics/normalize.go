package demographics

import (
	"encoding/json"
	"errors"
)

// ErrNoDemographics indicates that no extraction strategy found a recognized
// demographic mapping in the response payload.
var ErrNoDemographics = errors.New("no recognized demographic keys in response")

// The remote service has shipped several response shapes: the demographic
// mapping at the top level, or nested under one of these keys. Strategies are
// probed in order and the first candidate carrying a recognized category wins.
var nestingKeys = []string{"data", "analysis", "results"}

// sourceKeys maps remote category keys to normalized category names. The
// service reports "gender"; the normalized model calls that facet "sex".
var sourceKeys = map[string]string{
	"age":    CategoryAge,
	"gender": CategorySex,
	"sex":    CategorySex,
	"race":   CategoryRace,
}

// Normalize extracts the demographic mapping from a decoded response payload,
// probing the top level first and then each known nesting key.
func Normalize(payload map[string]any) (Analysis, error) {
	candidates := []map[string]any{payload}
	for _, key := range nestingKeys {
		if nested, ok := payload[key].(map[string]any); ok {
			candidates = append(candidates, nested)
		}
	}

	for _, candidate := range candidates {
		if analysis := extract(candidate); !analysis.IsEmpty() {
			return analysis, nil
		}
	}
	return nil, ErrNoDemographics
}

// NormalizeJSON decodes a raw response body and normalizes it.
func NormalizeJSON(body []byte) (Analysis, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return Normalize(payload)
}

// extract builds an Analysis from one candidate object, keeping only
// recognized categories whose values are label->number mappings.
func extract(candidate map[string]any) Analysis {
	analysis := Analysis{}
	for key, normalized := range sourceKeys {
		raw, ok := candidate[key].(map[string]any)
		if !ok {
			continue
		}
		labels := map[string]float64{}
		for label, value := range raw {
			if confidence, ok := toFloat(value); ok {
				labels[label] = confidence
			}
		}
		if len(labels) > 0 {
			analysis[normalized] = labels
		}
	}
	return analysis
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
