// Package audit maintains the one-per-result validation record: who
// corrected what and when. Repeated corrections merge into the same record
// instead of creating duplicates.
package audit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/model"
)

// DefaultAccuracyRating is assigned to new records; reviewers may adjust it
// through channels outside this core.
const DefaultAccuracyRating = 5

// Store is the slice of the persistence collaborator the recorder needs.
type Store interface {
	LoadOrCreateValidationRecord(ctx context.Context, resultID string) (*model.ValidationRecord, error)
	SaveValidationRecord(ctx context.Context, rec *model.ValidationRecord) error
}

// Recorder upserts validation records.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record upserts the audit trail for one result: corrections are merged
// cumulatively (new keys overwrite same-named old keys, the rest survive),
// notes and validator are last-write-wins, the timestamp is refreshed.
func (r *Recorder) Record(ctx context.Context, resultID, validator string, corrections map[string]any, notes string) (*model.ValidationRecord, error) {
	rec, err := r.store.LoadOrCreateValidationRecord(ctx, resultID)
	if err != nil {
		return nil, eris.Wrapf(err, "audit: load record for result %s", resultID)
	}

	Merge(rec, validator, corrections, notes)

	if err := r.store.SaveValidationRecord(ctx, rec); err != nil {
		return nil, eris.Wrapf(err, "audit: save record for result %s", resultID)
	}

	zap.L().Info("validation recorded",
		zap.String("result_id", resultID),
		zap.String("validated_by", validator),
		zap.Int("corrections", len(corrections)),
	)
	return rec, nil
}

// Merge applies one correction submission to a record in place.
func Merge(rec *model.ValidationRecord, validator string, corrections map[string]any, notes string) {
	if rec.CorrectionsMade == nil {
		rec.CorrectionsMade = make(map[string]any, len(corrections))
	}
	for path, value := range corrections {
		rec.CorrectionsMade[path] = value
	}
	rec.ValidatedBy = validator
	rec.Notes = notes
	if rec.AccuracyRating == 0 {
		rec.AccuracyRating = DefaultAccuracyRating
	}
	rec.ValidatedAt = time.Now().UTC()
}
