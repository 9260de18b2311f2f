// Package review derives human-review guidance from an extraction result's
// confidence state: priority buckets, actionable suggestions for critical
// fields, and the single next action for the reviewing client.
package review

import (
	"fmt"
	"sort"

	"github.com/scanvoice/review-engine/internal/confidence"
	"github.com/scanvoice/review-engine/internal/fieldpath"
	"github.com/scanvoice/review-engine/internal/model"
)

// Priority bucket thresholds.
const (
	highPriorityBelow   = 60.0
	mediumPriorityBelow = 80.0
)

// criticalFields must be trustworthy before an invoice can be created from
// the result. Order determines suggestion order in responses.
var criticalFields = []string{
	"numer_faktury",
	"data_wystawienia",
	"suma_brutto",
	"sprzedawca",
	"nabywca",
}

// Priorities buckets extracted field paths by review urgency.
type Priorities struct {
	High   []string `json:"high"`
	Medium []string `json:"medium"`
	Low    []string `json:"low"`
}

// Suggestion is a human-readable prompt to re-check one critical field.
type Suggestion struct {
	Field      string  `json:"field"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
	Priority   string  `json:"priority"`
}

// NextAction is the single recommended client action for a result.
type NextAction string

const (
	ActionWaitForProcessing NextAction = "wait_for_processing"
	ActionReviewInvoice     NextAction = "review_invoice"
	ActionManualValidation  NextAction = "manual_validation"
	ActionCreateInvoice     NextAction = "create_invoice"
	ActionReviewAndCorrect  NextAction = "review_and_correct"
)

// Prioritize buckets every extracted field by its confidence: below 60 is
// high priority, below 80 medium, the rest low. Fields without their own
// confidence entry inherit the overall score.
func Prioritize(result *model.ExtractionResult) Priorities {
	var p Priorities
	for _, path := range leafPaths(result.Fields) {
		conf := result.Confidence(path)
		switch {
		case conf < highPriorityBelow:
			p.High = append(p.High, path)
		case conf < mediumPriorityBelow:
			p.Medium = append(p.Medium, path)
		default:
			p.Low = append(p.Low, path)
		}
	}
	return p
}

// Suggest emits a suggestion for each critical field that is present in the
// extraction but sits below the review gate.
func Suggest(result *model.ExtractionResult) []Suggestion {
	var out []Suggestion
	for _, field := range criticalFields {
		if _, found := fieldpath.Get(result.Fields, field); !found {
			continue
		}
		conf := result.Confidence(field)
		if conf >= confidence.ReviewGateThreshold {
			continue
		}
		priority := "medium"
		if conf < highPriorityBelow {
			priority = "high"
		}
		out = append(out, Suggestion{
			Field:      field,
			Message:    fmt.Sprintf("verify %s: extracted with %.0f%% confidence", field, conf),
			Confidence: conf,
			Priority:   priority,
		})
	}
	return out
}

// Next picks the single next action, first match wins: unfinished processing
// beats everything, an already linked invoice is reviewed, low overall
// confidence demands manual validation, an eligible result can create an
// invoice, anything else goes back to correction.
func Next(result *model.ExtractionResult) NextAction {
	switch {
	case result.ProcessingStatus != model.StatusCompleted:
		return ActionWaitForProcessing
	case result.LinkedInvoiceID != "":
		return ActionReviewInvoice
	case confidence.NeedsReview(result.OverallConfidence):
		return ActionManualValidation
	case EligibleForInvoice(result):
		return ActionCreateInvoice
	default:
		return ActionReviewAndCorrect
	}
}

// EligibleForInvoice reports whether a result can be auto-converted: fully
// processed, not yet linked, overall confidence at or above the review gate,
// and every critical field present in the extraction.
func EligibleForInvoice(result *model.ExtractionResult) bool {
	if result.ProcessingStatus != model.StatusCompleted || result.LinkedInvoiceID != "" {
		return false
	}
	if confidence.NeedsReview(result.OverallConfidence) {
		return false
	}
	for _, field := range criticalFields {
		if _, found := fieldpath.Get(result.Fields, field); !found {
			return false
		}
	}
	return true
}

// leafPaths flattens the field tree into sorted dotted paths of its scalar
// leaves. Empty containers contribute no paths.
func leafPaths(fields map[string]any) []string {
	var paths []string
	var walk func(prefix string, node any)
	walk = func(prefix string, node any) {
		switch t := node.(type) {
		case map[string]any:
			for k, v := range t {
				p := k
				if prefix != "" {
					p = prefix + "." + k
				}
				walk(p, v)
			}
		case []any:
			for i, v := range t {
				walk(fmt.Sprintf("%s.%d", prefix, i), v)
			}
		default:
			paths = append(paths, prefix)
		}
	}
	walk("", fields)
	sort.Strings(paths)
	return paths
}
