package correction

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanvoice/review-engine/internal/confidence"
	"github.com/scanvoice/review-engine/internal/model"
	"github.com/scanvoice/review-engine/internal/review"
	"github.com/scanvoice/review-engine/internal/store"
	"github.com/scanvoice/review-engine/internal/validate"
)

// memStore is an in-memory store.Store for service tests.
type memStore struct {
	results map[string]*model.ExtractionResult
	records map[string]*model.ValidationRecord
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{
		results: make(map[string]*model.ExtractionResult),
		records: make(map[string]*model.ValidationRecord),
	}
}

func (m *memStore) CreateExtractionResult(_ context.Context, r *model.ExtractionResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.results[r.ID] = r
	return nil
}

func (m *memStore) GetExtractionResult(_ context.Context, id string) (*model.ExtractionResult, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "result %s", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) SaveExtractionResult(_ context.Context, r *model.ExtractionResult, expectedVersion int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.results[r.ID]
	if !ok {
		return eris.Wrapf(store.ErrNotFound, "result %s", r.ID)
	}
	if stored.Version != expectedVersion {
		return eris.Wrapf(store.ErrVersionConflict, "result %s at version %d", r.ID, expectedVersion)
	}
	r.Version = expectedVersion + 1
	cp := *r
	m.results[r.ID] = &cp
	return nil
}

func (m *memStore) LoadOrCreateValidationRecord(_ context.Context, resultID string) (*model.ValidationRecord, error) {
	if rec, ok := m.records[resultID]; ok {
		cp := *rec
		return &cp, nil
	}
	return &model.ValidationRecord{ID: uuid.NewString(), ResultID: resultID}, nil
}

func (m *memStore) SaveValidationRecord(_ context.Context, rec *model.ValidationRecord) error {
	cp := *rec
	m.records[rec.ResultID] = &cp
	return nil
}

func (m *memStore) ListValidationRecords(_ context.Context, _ int) ([]model.ValidationRecord, error) {
	var out []model.ValidationRecord
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// fakeInvoices is a scriptable InvoiceService.
type fakeInvoices struct {
	canCreate bool
	createErr error
	created   *model.Invoice
}

func (f *fakeInvoices) CanCreate(context.Context, *model.ExtractionResult) (bool, error) {
	return f.canCreate, nil
}

func (f *fakeInvoices) CreateFromResult(context.Context, *model.ExtractionResult) (*model.Invoice, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func seedResult(t *testing.T, st *memStore) *model.ExtractionResult {
	t.Helper()
	r := &model.ExtractionResult{
		ID: "res-1",
		Fields: map[string]any{
			"numer_faktury":    "FV/2025/08/OO1",
			"data_wystawienia": "2025-08-01",
			"sprzedawca":       map[string]any{"nazwa": "ACME Sp. z o.o.", "nip": "1111111111"},
			"nabywca":          map[string]any{"nazwa": "Klient SA"},
			"suma_brutto":      1230.0,
		},
		FieldConfidence: map[string]float64{
			"numer_faktury":  45,
			"sprzedawca.nip": 50,
			"suma_brutto":    95,
		},
		OverallConfidence: 63.0,
		ProcessingStatus:  model.StatusManualReview,
	}
	require.NoError(t, st.CreateExtractionResult(context.Background(), r))
	return r
}

func TestApplyCorrection_HappyPath(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), nil)

	resp, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections: map[string]any{
			"numer_faktury":  "FV/2025/08/001",
			"sprzedawca.nip": "526-025-02-74",
		},
		Order: []string{"numer_faktury", "sprzedawca.nip"},
		Notes: "fixed OCR misreads",
	}, "alice")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"numer_faktury", "sprzedawca.nip"}, resp.UpdatedFields)
	assert.Equal(t, 100.0, resp.NewConfidenceScores["numer_faktury"])
	assert.Equal(t, 100.0, resp.NewConfidenceScores["sprzedawca.nip"])
	assert.Greater(t, resp.OverallConfidence, 63.0)
	assert.NotEmpty(t, resp.ValidationID)
	assert.False(t, resp.InvoiceCreated)

	stored := st.results["res-1"]
	assert.Equal(t, "FV/2025/08/001", stored.Fields["numer_faktury"])
	// NIP is persisted normalized, without separators.
	assert.Equal(t, "5260250274", stored.Fields["sprzedawca"].(map[string]any)["nip"])
	assert.Equal(t, model.StatusCompleted, stored.ProcessingStatus)
	assert.Equal(t, int64(1), stored.Version)

	rec := st.records["res-1"]
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.ValidatedBy)
	assert.Equal(t, "fixed OCR misreads", rec.Notes)
	assert.Contains(t, rec.CorrectionsMade, "numer_faktury")
}

func TestApplyCorrection_ValidationFailureRejectsWholeBatch(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), nil)

	_, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections: map[string]any{
			"numer_faktury": "FV/2025/08/001", // valid
			"suma_brutto":   "-12,00",         // negative
		},
	}, "alice")
	require.Error(t, err)

	ferrs, ok := validate.AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, ferrs, "suma_brutto")

	// Nothing was mutated, saved, or recorded.
	stored := st.results["res-1"]
	assert.Equal(t, "FV/2025/08/OO1", stored.Fields["numer_faktury"])
	assert.Equal(t, int64(0), stored.Version)
	assert.Empty(t, st.records)
}

func TestApplyCorrection_EmptyWithCreateInvoice(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), nil)

	_, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{CreateInvoice: true}, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, validate.ErrEmptyCorrections)
}

func TestApplyCorrection_EmptySubmissionDoesNotPersist(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), nil)

	resp, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{}, "alice")
	require.NoError(t, err)

	assert.Empty(t, resp.UpdatedFields)
	assert.Empty(t, resp.ValidationID)
	assert.Equal(t, 63.0, resp.OverallConfidence)

	// No save, no version bump, no validation record, no status change.
	stored := st.results["res-1"]
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, model.StatusManualReview, stored.ProcessingStatus)
	assert.Empty(t, st.records)
}

func TestApplyCorrection_ResultNotFound(t *testing.T) {
	svc := NewService(newMemStore(), confidence.NewModel(nil), nil)

	_, err := svc.ApplyCorrection(context.Background(), "missing", &model.CorrectionSet{
		Corrections: map[string]any{"numer_faktury": "FV/1"},
	}, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyCorrection_CreateInvoice(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	invoices := &fakeInvoices{
		canCreate: true,
		created:   &model.Invoice{ID: "inv-1", Number: "FV/2025/08/001", Status: "draft"},
	}
	svc := NewService(st, confidence.NewModel(nil), invoices)

	resp, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections:   map[string]any{"numer_faktury": "FV/2025/08/001"},
		CreateInvoice: true,
	}, "alice")
	require.NoError(t, err)

	assert.True(t, resp.InvoiceCreated)
	assert.Equal(t, "inv-1", resp.InvoiceID)
	assert.Empty(t, resp.InvoiceError)
	assert.Equal(t, "inv-1", st.results["res-1"].LinkedInvoiceID)
}

func TestApplyCorrection_InvoiceFailureIsPartialSuccess(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	invoices := &fakeInvoices{canCreate: true, createErr: eris.New("upstream 503")}
	svc := NewService(st, confidence.NewModel(nil), invoices)

	resp, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections:   map[string]any{"numer_faktury": "FV/2025/08/001"},
		CreateInvoice: true,
	}, "alice")
	require.NoError(t, err)

	// Corrections stuck, invoice did not.
	assert.False(t, resp.InvoiceCreated)
	assert.Contains(t, resp.InvoiceError, "upstream 503")
	assert.Equal(t, "FV/2025/08/001", st.results["res-1"].Fields["numer_faktury"])
	assert.Empty(t, st.results["res-1"].LinkedInvoiceID)
}

func TestApplyCorrection_IneligibleInvoiceRequest(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), &fakeInvoices{canCreate: false})

	resp, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections:   map[string]any{"numer_faktury": "FV/2025/08/001"},
		CreateInvoice: true,
	}, "alice")
	require.NoError(t, err)

	assert.False(t, resp.InvoiceCreated)
	assert.Contains(t, resp.InvoiceError, "not eligible")
}

func TestApplyCorrection_RepeatedMergesAuditRecord(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), nil)

	_, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections: map[string]any{"numer_faktury": "FV/2025/08/001"},
	}, "alice")
	require.NoError(t, err)

	resp, err := svc.ApplyCorrection(context.Background(), "res-1", &model.CorrectionSet{
		Corrections: map[string]any{"suma_brutto": "1 230,00 zł"},
	}, "bob")
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.NewConfidenceScores["suma_brutto"])
	assert.Equal(t, 1230.0, st.results["res-1"].Fields["suma_brutto"])

	rec := st.records["res-1"]
	require.NotNil(t, rec)
	assert.Equal(t, "bob", rec.ValidatedBy)
	assert.Contains(t, rec.CorrectionsMade, "numer_faktury")
	assert.Contains(t, rec.CorrectionsMade, "suma_brutto")
	assert.Equal(t, int64(2), st.results["res-1"].Version)
}

func TestGetDetail(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	svc := NewService(st, confidence.NewModel(nil), nil)

	detail, err := svc.GetDetail(context.Background(), "res-1")
	require.NoError(t, err)

	assert.Equal(t, "res-1", detail.ID)
	assert.Equal(t, confidence.LevelLow, detail.ConfidenceLevel)
	assert.True(t, detail.NeedsReview)
	assert.Equal(t, review.ActionWaitForProcessing, detail.NextAction)
	assert.NotEmpty(t, detail.ValidationFields)
	assert.NotEmpty(t, detail.ReviewPriorities.High)
	assert.Contains(t, detail.ReviewPriorities.High, "numer_faktury")

	// Critical fields below the gate produce suggestions.
	var fields []string
	for _, s := range detail.Suggestions {
		fields = append(fields, s.Field)
	}
	assert.Contains(t, fields, "numer_faktury")
}

func TestGetDetail_NotFound(t *testing.T) {
	svc := NewService(newMemStore(), confidence.NewModel(nil), nil)
	_, err := svc.GetDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
