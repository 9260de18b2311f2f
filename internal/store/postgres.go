package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scanvoice/review-engine/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, so pgxmock can stand
// in during tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a pgx pool to the given database URL.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (or a pgxmock one).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_results (
	id                 TEXT PRIMARY KEY,
	fields             JSONB NOT NULL DEFAULT '{}',
	field_confidence   JSONB NOT NULL DEFAULT '{}',
	overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_status  TEXT NOT NULL DEFAULT 'pending',
	linked_invoice_id  TEXT,
	task_id            TEXT,
	version            BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS validation_records (
	id               TEXT PRIMARY KEY,
	result_id        TEXT NOT NULL UNIQUE REFERENCES extraction_results(id),
	validated_by     TEXT NOT NULL DEFAULT '',
	corrections_made JSONB NOT NULL DEFAULT '{}',
	notes            TEXT NOT NULL DEFAULT '',
	accuracy_rating  INT NOT NULL DEFAULT 5,
	validated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extraction_results_status ON extraction_results(processing_status);
CREATE INDEX IF NOT EXISTS idx_extraction_results_task ON extraction_results(task_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateExtractionResult inserts a new result row.
func (s *PostgresStore) CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	fields, conf, err := marshalResultJSON(result)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_results
			(id, fields, field_confidence, overall_confidence, processing_status, linked_invoice_id, task_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		result.ID, fields, conf, result.OverallConfidence, string(result.ProcessingStatus),
		result.LinkedInvoiceID, result.TaskID, result.Version, result.CreatedAt, result.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: create result %s", result.ID)
}

// GetExtractionResult loads one result by id.
func (s *PostgresStore) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	var (
		r          model.ExtractionResult
		fields     []byte
		conf       []byte
		invoiceID  *string
		taskID     *string
		statusText string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, fields, field_confidence, overall_confidence, processing_status, linked_invoice_id, task_id, version, created_at, updated_at
		 FROM extraction_results WHERE id = $1`, id,
	).Scan(&r.ID, &fields, &conf, &r.OverallConfidence, &statusText, &invoiceID, &taskID, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "result %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get result %s", id)
	}

	r.ProcessingStatus = model.ProcessingStatus(statusText)
	if invoiceID != nil {
		r.LinkedInvoiceID = *invoiceID
	}
	if taskID != nil {
		r.TaskID = *taskID
	}
	if err := unmarshalResultJSON(&r, fields, conf); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveExtractionResult updates a result, guarded by the expected version.
func (s *PostgresStore) SaveExtractionResult(ctx context.Context, result *model.ExtractionResult, expectedVersion int64) error {
	fields, conf, err := marshalResultJSON(result)
	if err != nil {
		return err
	}
	result.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_results SET
			fields = $2,
			field_confidence = $3,
			overall_confidence = $4,
			processing_status = $5,
			linked_invoice_id = NULLIF($6, ''),
			version = version + 1,
			updated_at = $7
		WHERE id = $1 AND version = $8`,
		result.ID, fields, conf, result.OverallConfidence, string(result.ProcessingStatus),
		result.LinkedInvoiceID, result.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save result %s", result.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrVersionConflict, "result %s at version %d", result.ID, expectedVersion)
	}
	result.Version = expectedVersion + 1
	return nil
}

// LoadOrCreateValidationRecord returns the existing record for a result or a
// fresh, unpersisted one.
func (s *PostgresStore) LoadOrCreateValidationRecord(ctx context.Context, resultID string) (*model.ValidationRecord, error) {
	var (
		rec         model.ValidationRecord
		corrections []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, result_id, validated_by, corrections_made, notes, accuracy_rating, validated_at
		 FROM validation_records WHERE result_id = $1`, resultID,
	).Scan(&rec.ID, &rec.ResultID, &rec.ValidatedBy, &corrections, &rec.Notes, &rec.AccuracyRating, &rec.ValidatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return &model.ValidationRecord{ID: uuid.NewString(), ResultID: resultID}, nil
		}
		return nil, eris.Wrapf(err, "postgres: load validation record for %s", resultID)
	}
	if err := json.Unmarshal(corrections, &rec.CorrectionsMade); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode corrections for %s", resultID)
	}
	return &rec, nil
}

// SaveValidationRecord upserts the record keyed by result id.
func (s *PostgresStore) SaveValidationRecord(ctx context.Context, rec *model.ValidationRecord) error {
	corrections, err := json.Marshal(rec.CorrectionsMade)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode corrections for %s", rec.ResultID)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO validation_records (id, result_id, validated_by, corrections_made, notes, accuracy_rating, validated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (result_id) DO UPDATE SET
			validated_by = EXCLUDED.validated_by,
			corrections_made = EXCLUDED.corrections_made,
			notes = EXCLUDED.notes,
			accuracy_rating = EXCLUDED.accuracy_rating,
			validated_at = EXCLUDED.validated_at`,
		rec.ID, rec.ResultID, rec.ValidatedBy, corrections, rec.Notes, rec.AccuracyRating, rec.ValidatedAt,
	)
	return eris.Wrapf(err, "postgres: save validation record for %s", rec.ResultID)
}

// ListValidationRecords returns records newest-first, for the audit export.
func (s *PostgresStore) ListValidationRecords(ctx context.Context, limit int) ([]model.ValidationRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, result_id, validated_by, corrections_made, notes, accuracy_rating, validated_at
		 FROM validation_records ORDER BY validated_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list validation records")
	}
	defer rows.Close()

	var out []model.ValidationRecord
	for rows.Next() {
		var (
			rec         model.ValidationRecord
			corrections []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ResultID, &rec.ValidatedBy, &corrections, &rec.Notes, &rec.AccuracyRating, &rec.ValidatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan validation record")
		}
		if err := json.Unmarshal(corrections, &rec.CorrectionsMade); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode corrections for %s", rec.ResultID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list validation records")
}

func marshalResultJSON(result *model.ExtractionResult) (fields, conf []byte, err error) {
	if result.Fields == nil {
		result.Fields = map[string]any{}
	}
	if result.FieldConfidence == nil {
		result.FieldConfidence = map[string]float64{}
	}
	fields, err = json.Marshal(result.Fields)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: encode fields for %s", result.ID)
	}
	conf, err = json.Marshal(result.FieldConfidence)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: encode confidence for %s", result.ID)
	}
	return fields, conf, nil
}

func unmarshalResultJSON(result *model.ExtractionResult, fields, conf []byte) error {
	if err := json.Unmarshal(fields, &result.Fields); err != nil {
		return eris.Wrapf(err, "store: decode fields for %s", result.ID)
	}
	if err := json.Unmarshal(conf, &result.FieldConfidence); err != nil {
		return eris.Wrapf(err, "store: decode confidence for %s", result.ID)
	}
	return nil
}
