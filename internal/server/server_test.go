package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanvoice/review-engine/internal/confidence"
	"github.com/scanvoice/review-engine/internal/correction"
	"github.com/scanvoice/review-engine/internal/jobstatus"
	"github.com/scanvoice/review-engine/internal/model"
	"github.com/scanvoice/review-engine/internal/store"
)

type memStore struct {
	results map[string]*model.ExtractionResult
	records map[string]*model.ValidationRecord
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
	stored, ok := m.results[r.ID]
	if !ok {
		return eris.Wrapf(store.ErrNotFound, "result %s", r.ID)
	}
	if stored.Version != expectedVersion {
		return eris.Wrapf(store.ErrVersionConflict, "result %s", r.ID)
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

type fakeEngine struct {
	raw *model.RawJobState
	err error
}

func (f *fakeEngine) GetJobStatus(context.Context, string) (*model.RawJobState, error) {
	return f.raw, f.err
}

func newTestServer(t *testing.T, st *memStore, engine jobstatus.Engine) http.Handler {
	t.Helper()
	svc := correction.NewService(st, confidence.NewModel(nil), nil)
	return New(svc, st, engine).Router()
}

func seedResult(t *testing.T, st *memStore) {
	t.Helper()
	require.NoError(t, st.CreateExtractionResult(context.Background(), &model.ExtractionResult{
		ID: "res-1",
		Fields: map[string]any{
			"numer_faktury": "FV/2025/08/OO1",
			"suma_brutto":   1230.0,
		},
		FieldConfidence:   map[string]float64{"numer_faktury": 45, "suma_brutto": 95},
		OverallConfidence: 68,
		ProcessingStatus:  model.StatusManualReview,
	}))
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, newMemStore(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPostCorrections_OK(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	h := newTestServer(t, st, nil)

	body, _ := json.Marshal(map[string]any{
		"corrections":  map[string]any{"numer_faktury": "FV/2025/08/001"},
		"validated_by": "alice",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/results/res-1/corrections", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UpdatedFields     []string `json:"updated_fields"`
		OverallConfidence float64  `json:"overall_confidence"`
		ValidationID      string   `json:"validation_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"numer_faktury"}, resp.UpdatedFields)
	assert.Greater(t, resp.OverallConfidence, 68.0)
	assert.NotEmpty(t, resp.ValidationID)
}

func TestPostCorrections_ValidationErrors(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	h := newTestServer(t, st, nil)

	body, _ := json.Marshal(map[string]any{
		"corrections": map[string]any{"suma_brutto": "-5,00", "unknown_field": "x"},
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/results/res-1/corrections", bytes.NewReader(body)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		FieldErrors map[string]string `json:"field_errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.FieldErrors, "suma_brutto")
	assert.Contains(t, resp.FieldErrors, "unknown_field")
}

func TestPostCorrections_EmptyWithCreateInvoice(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	h := newTestServer(t, st, nil)

	body := []byte(`{"corrections":{},"create_invoice":true}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/results/res-1/corrections", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostCorrections_NotFound(t *testing.T) {
	h := newTestServer(t, newMemStore(), nil)

	body := []byte(`{"corrections":{"numer_faktury":"FV/1"}}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/results/missing/corrections", bytes.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostCorrections_BadBody(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	h := newTestServer(t, st, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/results/res-1/corrections", bytes.NewReader([]byte("{not json"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetResult(t *testing.T) {
	st := newMemStore()
	seedResult(t, st)
	h := newTestServer(t, st, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/res-1/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID               string   `json:"id"`
		NeedsReview      bool     `json:"needs_review"`
		NextAction       string   `json:"next_action"`
		ValidationFields []string `json:"validation_fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "res-1", resp.ID)
	assert.True(t, resp.NeedsReview)
	assert.Equal(t, "wait_for_processing", resp.NextAction)
	assert.NotEmpty(t, resp.ValidationFields)
}

func TestGetResult_NotFound(t *testing.T) {
	h := newTestServer(t, newMemStore(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/missing/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatus(t *testing.T) {
	progress := 40
	engine := &fakeEngine{raw: &model.RawJobState{
		TaskID:   "task-1",
		State:    "PROGRESS",
		Progress: &progress,
	}}
	h := newTestServer(t, newMemStore(), engine)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/task-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.JobProcessing, resp.Status)
	assert.Equal(t, 40, resp.Progress)
	require.NotNil(t, resp.ETASeconds)
	assert.Equal(t, 36, *resp.ETASeconds)
}

func TestGetStatus_TaskNotFound(t *testing.T) {
	engine := &fakeEngine{raw: &model.RawJobState{TaskID: "task-x", State: "PENDING"}}
	h := newTestServer(t, newMemStore(), engine)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/task-x", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatus_NoEngine(t *testing.T) {
	h := newTestServer(t, newMemStore(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/task-1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListValidations(t *testing.T) {
	st := newMemStore()
	st.records["res-1"] = &model.ValidationRecord{ID: "rec-1", ResultID: "res-1", ValidatedBy: "alice"}
	h := newTestServer(t, st, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/validations", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Validations []model.ValidationRecord `json:"validations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Validations, 1)
	assert.Equal(t, "alice", resp.Validations[0].ValidatedBy)
}
