// Package store persists extraction results and validation records behind a
// single interface with Postgres and SQLite implementations. Saves are
// version-checked so hosts can layer optimistic locking on top of the
// engine's last-writer-wins core.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scanvoice/review-engine/internal/model"
)

// ErrNotFound is returned when a result or record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrVersionConflict is returned when a save races a concurrent update.
var ErrVersionConflict = eris.New("store: version conflict")

// IsNotFound reports whether err stems from a missing result or record.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// IsVersionConflict reports whether err stems from a lost optimistic-lock race.
func IsVersionConflict(err error) bool {
	return eris.Is(err, ErrVersionConflict)
}

// Store defines the persistence collaborator for the review engine.
type Store interface {
	// Extraction results
	CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) error
	GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error)
	// SaveExtractionResult persists result if the stored version still equals
	// expectedVersion, then bumps result.Version.
	SaveExtractionResult(ctx context.Context, result *model.ExtractionResult, expectedVersion int64) error

	// Validation records (at most one per result)
	LoadOrCreateValidationRecord(ctx context.Context, resultID string) (*model.ValidationRecord, error)
	SaveValidationRecord(ctx context.Context, rec *model.ValidationRecord) error
	ListValidationRecords(ctx context.Context, limit int) ([]model.ValidationRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
