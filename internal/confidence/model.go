// Package confidence owns the per-field confidence map of an extraction
// result and the derived overall score. Human corrections are ground truth:
// corrected paths go to 100 and the overall score is recomputed as a
// weighted average keyed on base field names.
package confidence

import (
	"math"

	"github.com/scanvoice/review-engine/internal/fieldpath"
)

// MaxConfidence is assigned to every human-corrected field.
const MaxConfidence = 100.0

// Level is the four-tier classification of a confidence score.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelVeryLow Level = "very_low"
)

// CategoryBreakdown summarizes the confidences of one category's fields.
type CategoryBreakdown struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// Statistics aggregates all field confidences of a result.
type Statistics struct {
	TotalFields       int     `json:"total_fields"`
	AverageConfidence float64 `json:"average_confidence"`
	MinConfidence     float64 `json:"min_confidence"`
	MaxConfidence     float64 `json:"max_confidence"`
	FieldsAbove80     int     `json:"fields_above_80"`
	FieldsBelow60     int     `json:"fields_below_60"`
	Variance          float64 `json:"variance"`
}

// Model computes scores against a weight configuration.
type Model struct {
	cfg *Config
}

// NewModel creates a Model; a nil cfg uses the default weight table.
func NewModel(cfg *Config) *Model {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg}
}

// Recompute sets every updated path to MaxConfidence and derives the new
// overall score. fieldConfidence is mutated in place and also returned. The
// prior overall is kept when there are no field confidences at all.
func (m *Model) Recompute(fieldConfidence map[string]float64, updatedPaths []string, priorOverall float64) (map[string]float64, float64) {
	if fieldConfidence == nil {
		fieldConfidence = make(map[string]float64, len(updatedPaths))
	}
	for _, p := range updatedPaths {
		fieldConfidence[p] = MaxConfidence
	}
	return fieldConfidence, m.Overall(fieldConfidence, priorOverall)
}

// Overall computes the weighted overall score: each entry contributes its
// base field's weight. With an empty map the prior overall is returned.
func (m *Model) Overall(fieldConfidence map[string]float64, priorOverall float64) float64 {
	if len(fieldConfidence) == 0 {
		return priorOverall
	}

	var weightedSum, weightSum float64
	for path, conf := range fieldConfidence {
		w := m.cfg.Weight(fieldpath.Base(path))
		weightedSum += w * conf
		weightSum += w
	}
	if weightSum == 0 {
		// All-zero weight override: degrade to the plain mean.
		var sum float64
		for _, conf := range fieldConfidence {
			sum += conf
		}
		return sum / float64(len(fieldConfidence))
	}
	return weightedSum / weightSum
}

// Classify maps a score to its four-tier level.
func Classify(score float64) Level {
	switch {
	case score >= ThresholdHigh:
		return LevelHigh
	case score >= ThresholdMedium:
		return LevelMedium
	case score >= ThresholdLow:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// NeedsReview is the binary review gate. It deliberately uses the 80
// threshold, not the 70 classification tier.
func NeedsReview(overall float64) bool {
	return overall < ReviewGateThreshold
}

// Breakdown reports per-category statistics over the member fields present
// in fieldConfidence. Categories with no present members are omitted.
func (m *Model) Breakdown(fieldConfidence map[string]float64) map[string]CategoryBreakdown {
	baseOf := make(map[string][]float64)
	for path, conf := range fieldConfidence {
		base := fieldpath.Base(path)
		baseOf[base] = append(baseOf[base], conf)
	}

	out := make(map[string]CategoryBreakdown)
	for category, members := range m.cfg.Categories {
		var values []float64
		for _, member := range members {
			values = append(values, baseOf[member]...)
		}
		if len(values) == 0 {
			continue
		}
		b := CategoryBreakdown{Min: values[0], Max: values[0], Count: len(values)}
		var sum float64
		for _, v := range values {
			sum += v
			b.Min = math.Min(b.Min, v)
			b.Max = math.Max(b.Max, v)
		}
		b.Average = sum / float64(len(values))
		out[category] = b
	}
	return out
}

// Stats computes aggregate statistics over all field confidences. Variance
// is the population variance.
func Stats(fieldConfidence map[string]float64) Statistics {
	s := Statistics{TotalFields: len(fieldConfidence)}
	if s.TotalFields == 0 {
		return s
	}

	first := true
	var sum float64
	for _, v := range fieldConfidence {
		if first {
			s.MinConfidence, s.MaxConfidence = v, v
			first = false
		}
		sum += v
		s.MinConfidence = math.Min(s.MinConfidence, v)
		s.MaxConfidence = math.Max(s.MaxConfidence, v)
		if v >= 80 {
			s.FieldsAbove80++
		}
		if v < 60 {
			s.FieldsBelow60++
		}
	}
	s.AverageConfidence = sum / float64(s.TotalFields)

	var sqSum float64
	for _, v := range fieldConfidence {
		d := v - s.AverageConfidence
		sqSum += d * d
	}
	s.Variance = sqSum / float64(s.TotalFields)
	return s
}
