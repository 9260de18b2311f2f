package model

import (
	"time"
)

// ProcessingStatus represents the lifecycle state of an extraction result.
type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusProcessing   ProcessingStatus = "processing"
	StatusManualReview ProcessingStatus = "manual_review"
	StatusCompleted    ProcessingStatus = "completed"
	StatusFailed       ProcessingStatus = "failed"
)

// ExtractionResult is the structured output of the external OCR engine for
// one uploaded document, under human review. Fields is a nested tree of
// map[string]any / []any with scalar leaves, addressed by dotted field paths
// (e.g. "sprzedawca.nazwa", "pozycje.0.cena_netto").
type ExtractionResult struct {
	ID                string             `json:"id"`
	Fields            map[string]any     `json:"fields"`
	FieldConfidence   map[string]float64 `json:"field_confidence"`
	OverallConfidence float64            `json:"overall_confidence"`
	ProcessingStatus  ProcessingStatus   `json:"processing_status"`
	LinkedInvoiceID   string             `json:"linked_invoice_id,omitempty"`
	TaskID            string             `json:"task_id,omitempty"`
	Version           int64              `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Confidence returns the confidence for a field path, falling back to the
// overall score when the path has no entry of its own.
func (r *ExtractionResult) Confidence(path string) float64 {
	if c, ok := r.FieldConfidence[path]; ok {
		return c
	}
	return r.OverallConfidence
}

// Invoice is the record returned by the external invoice-creation service.
type Invoice struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}
