package correction

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/audit"
	"github.com/scanvoice/review-engine/internal/confidence"
	"github.com/scanvoice/review-engine/internal/model"
	"github.com/scanvoice/review-engine/internal/review"
	"github.com/scanvoice/review-engine/internal/store"
	"github.com/scanvoice/review-engine/internal/validate"
)

// ErrInvoiceCreation marks a downstream invoice-service failure. Corrections
// stay applied and persisted when this happens; the partial success is
// reported, never rolled back.
var ErrInvoiceCreation = eris.New("correction: invoice creation failed")

// InvoiceService is the external invoice-creation collaborator.
type InvoiceService interface {
	CanCreate(ctx context.Context, result *model.ExtractionResult) (bool, error)
	CreateFromResult(ctx context.Context, result *model.ExtractionResult) (*model.Invoice, error)
}

// Service runs the correction flow against one extraction result at a time.
// It is stateless between calls; all I/O goes through the collaborators.
type Service struct {
	store    store.Store
	recorder *audit.Recorder
	conf     *confidence.Model
	invoices InvoiceService
}

// NewService wires the collaborators. invoices may be nil when the host has
// no invoice-creation backend; creation requests then fail the gating check.
func NewService(st store.Store, conf *confidence.Model, invoices InvoiceService) *Service {
	return &Service{
		store:    st,
		recorder: audit.NewRecorder(st),
		conf:     conf,
		invoices: invoices,
	}
}

// ApplyResponse reports the outcome of one correction request. InvoiceError
// is set when corrections were applied and persisted but the requested
// invoice creation failed afterwards.
type ApplyResponse struct {
	UpdatedFields       []string           `json:"updated_fields"`
	NewConfidenceScores map[string]float64 `json:"new_confidence_scores"`
	OverallConfidence   float64            `json:"overall_confidence"`
	NeedsReview         bool               `json:"needs_review"`
	ValidationID        string             `json:"validation_id"`
	InvoiceCreated      bool               `json:"invoice_created"`
	InvoiceID           string             `json:"invoice_id,omitempty"`
	InvoiceError        string             `json:"invoice_error,omitempty"`
}

// ApplyCorrection validates and applies a correction set to the result,
// recomputes confidence, persists both the result and the audit record, and
// optionally forwards to invoice creation. Validation failures reject the
// whole request with the full error batch before any mutation.
func (s *Service) ApplyCorrection(ctx context.Context, resultID string, set *model.CorrectionSet, validator string) (*ApplyResponse, error) {
	normalized, err := validate.CorrectionSet(set)
	if err != nil {
		return nil, err
	}

	result, err := s.store.GetExtractionResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	loadedVersion := result.Version

	updated := Apply(result, normalized, set.Paths())
	if len(updated) == 0 {
		// A submission that changed nothing must not touch persistence: no
		// version bump, no validation record.
		return &ApplyResponse{
			UpdatedFields:       []string{},
			NewConfidenceScores: map[string]float64{},
			OverallConfidence:   result.OverallConfidence,
			NeedsReview:         confidence.NeedsReview(result.OverallConfidence),
		}, nil
	}

	result.FieldConfidence, result.OverallConfidence = s.conf.Recompute(
		result.FieldConfidence, updated, result.OverallConfidence)
	if len(updated) > 0 && result.ProcessingStatus == model.StatusManualReview {
		result.ProcessingStatus = model.StatusCompleted
	}

	if err := s.store.SaveExtractionResult(ctx, result, loadedVersion); err != nil {
		return nil, err
	}

	rec, err := s.recorder.Record(ctx, resultID, validator, normalized, set.Notes)
	if err != nil {
		return nil, err
	}

	resp := &ApplyResponse{
		UpdatedFields:       updated,
		NewConfidenceScores: make(map[string]float64, len(updated)),
		OverallConfidence:   result.OverallConfidence,
		NeedsReview:         confidence.NeedsReview(result.OverallConfidence),
		ValidationID:        rec.ID,
	}
	for _, p := range updated {
		resp.NewConfidenceScores[p] = result.FieldConfidence[p]
	}

	zap.L().Info("corrections applied",
		zap.String("result_id", resultID),
		zap.Int("updated_fields", len(updated)),
		zap.Float64("overall_confidence", result.OverallConfidence),
	)

	if set.CreateInvoice {
		invoice, invErr := s.createInvoice(ctx, result)
		if invErr != nil {
			resp.InvoiceError = invErr.Error()
			zap.L().Error("invoice creation failed after corrections",
				zap.String("result_id", resultID),
				zap.Error(invErr),
			)
		} else {
			resp.InvoiceCreated = true
			resp.InvoiceID = invoice.ID
		}
	}

	return resp, nil
}

// createInvoice runs the gating check and forwards to the invoice service,
// then links the new invoice on the result.
func (s *Service) createInvoice(ctx context.Context, result *model.ExtractionResult) (*model.Invoice, error) {
	if s.invoices == nil {
		return nil, eris.Wrap(ErrInvoiceCreation, "no invoice service configured")
	}
	ok, err := s.invoices.CanCreate(ctx, result)
	if err != nil {
		return nil, eris.Wrap(ErrInvoiceCreation, err.Error())
	}
	if !ok {
		return nil, eris.Wrap(ErrInvoiceCreation, "result is not eligible for invoice creation")
	}

	invoice, err := s.invoices.CreateFromResult(ctx, result)
	if err != nil {
		return nil, eris.Wrap(ErrInvoiceCreation, err.Error())
	}

	result.LinkedInvoiceID = invoice.ID
	if err := s.store.SaveExtractionResult(ctx, result, result.Version); err != nil {
		return nil, eris.Wrap(ErrInvoiceCreation, err.Error())
	}
	return invoice, nil
}

// Detail is the review view of one extraction result.
type Detail struct {
	ID                  string                                 `json:"id"`
	Fields              map[string]any                         `json:"fields"`
	OverallConfidence   float64                                `json:"overall_confidence"`
	ConfidenceLevel     confidence.Level                       `json:"confidence_level"`
	ConfidenceBreakdown map[string]confidence.CategoryBreakdown `json:"confidence_breakdown"`
	Statistics          confidence.Statistics                  `json:"statistics"`
	ValidationFields    []string                               `json:"validation_fields"`
	ReviewPriorities    review.Priorities                      `json:"review_priorities"`
	Suggestions         []review.Suggestion                    `json:"suggestions"`
	NextAction          review.NextAction                      `json:"next_action"`
	NeedsReview         bool                                   `json:"needs_review"`
	ProcessingStatus    model.ProcessingStatus                 `json:"processing_status"`
	LinkedInvoiceID     string                                 `json:"linked_invoice_id,omitempty"`
}

// GetDetail assembles the review view for one result.
func (s *Service) GetDetail(ctx context.Context, resultID string) (*Detail, error) {
	result, err := s.store.GetExtractionResult(ctx, resultID)
	if err != nil {
		return nil, err
	}

	return &Detail{
		ID:                  result.ID,
		Fields:              result.Fields,
		OverallConfidence:   result.OverallConfidence,
		ConfidenceLevel:     confidence.Classify(result.OverallConfidence),
		ConfidenceBreakdown: s.conf.Breakdown(result.FieldConfidence),
		Statistics:          confidence.Stats(result.FieldConfidence),
		ValidationFields:    validate.AllowedPaths(),
		ReviewPriorities:    review.Prioritize(result),
		Suggestions:         review.Suggest(result),
		NextAction:          review.Next(result),
		NeedsReview:         confidence.NeedsReview(result.OverallConfidence),
		ProcessingStatus:    result.ProcessingStatus,
		LinkedInvoiceID:     result.LinkedInvoiceID,
	}, nil
}
