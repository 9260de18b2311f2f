package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanvoice/review-engine/internal/model"
)

// memStore keeps at most one record per result id, like the real stores.
type memStore struct {
	records map[string]*model.ValidationRecord
	saves   int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*model.ValidationRecord{}}
}

func (s *memStore) LoadOrCreateValidationRecord(_ context.Context, resultID string) (*model.ValidationRecord, error) {
	if rec, ok := s.records[resultID]; ok {
		return rec, nil
	}
	return &model.ValidationRecord{ID: uuid.NewString(), ResultID: resultID}, nil
}

func (s *memStore) SaveValidationRecord(_ context.Context, rec *model.ValidationRecord) error {
	s.records[rec.ResultID] = rec
	s.saves++
	return nil
}

func TestRecordCreatesWithDefaults(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(store)

	rec, err := r.Record(context.Background(), "res-1", "alice", map[string]any{"numer_faktury": "FV/1"}, "first pass")
	require.NoError(t, err)

	assert.Equal(t, "res-1", rec.ResultID)
	assert.Equal(t, "alice", rec.ValidatedBy)
	assert.Equal(t, DefaultAccuracyRating, rec.AccuracyRating)
	assert.Equal(t, "first pass", rec.Notes)
	assert.False(t, rec.ValidatedAt.IsZero())
	assert.NotEmpty(t, rec.ID)
}

func TestRecordUpsertsSingleRecord(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	first, err := r.Record(ctx, "res-1", "alice", map[string]any{
		"numer_faktury": "FV/1",
		"suma_brutto":   100.0,
	}, "pass one")
	require.NoError(t, err)

	second, err := r.Record(ctx, "res-1", "bob", map[string]any{
		"suma_brutto":    200.0,
		"sprzedawca.nip": "5260250274",
	}, "pass two")
	require.NoError(t, err)

	// Exactly one record, same identity.
	assert.Len(t, store.records, 1)
	assert.Equal(t, first.ID, second.ID)

	// Union with last-write-wins on shared keys.
	assert.Equal(t, "FV/1", second.CorrectionsMade["numer_faktury"])
	assert.Equal(t, 200.0, second.CorrectionsMade["suma_brutto"])
	assert.Equal(t, "5260250274", second.CorrectionsMade["sprzedawca.nip"])

	// Validator and notes are overwritten by the latest call.
	assert.Equal(t, "bob", second.ValidatedBy)
	assert.Equal(t, "pass two", second.Notes)
}

func TestMergeKeepsExplicitRating(t *testing.T) {
	rec := &model.ValidationRecord{ResultID: "res-1", AccuracyRating: 3}
	Merge(rec, "alice", nil, "")
	assert.Equal(t, 3, rec.AccuracyRating)
}
