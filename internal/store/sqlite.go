package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scanvoice/review-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-box
// deployments without a Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_results (
	id                 TEXT PRIMARY KEY,
	fields             TEXT NOT NULL DEFAULT '{}',
	field_confidence   TEXT NOT NULL DEFAULT '{}',
	overall_confidence REAL NOT NULL DEFAULT 0,
	processing_status  TEXT NOT NULL DEFAULT 'pending',
	linked_invoice_id  TEXT,
	task_id            TEXT,
	version            INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS validation_records (
	id               TEXT PRIMARY KEY,
	result_id        TEXT NOT NULL UNIQUE REFERENCES extraction_results(id),
	validated_by     TEXT NOT NULL DEFAULT '',
	corrections_made TEXT NOT NULL DEFAULT '{}',
	notes            TEXT NOT NULL DEFAULT '',
	accuracy_rating  INTEGER NOT NULL DEFAULT 5,
	validated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extraction_results_status ON extraction_results(processing_status);
CREATE INDEX IF NOT EXISTS idx_extraction_results_task ON extraction_results(task_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) error {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_results
			(id, fields, field_confidence, overall_confidence, processing_status, linked_invoice_id, task_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`,
		result.ID, string(fields), string(conf), result.OverallConfidence, string(result.ProcessingStatus),
		result.LinkedInvoiceID, result.TaskID, result.Version, result.CreatedAt, result.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: create result %s", result.ID)
}

func (s *SQLiteStore) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	var (
		r          model.ExtractionResult
		fields     string
		conf       string
		invoiceID  sql.NullString
		taskID     sql.NullString
		statusText string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fields, field_confidence, overall_confidence, processing_status, linked_invoice_id, task_id, version, created_at, updated_at
		 FROM extraction_results WHERE id = ?`, id,
	).Scan(&r.ID, &fields, &conf, &r.OverallConfidence, &statusText, &invoiceID, &taskID, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "result %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get result %s", id)
	}

	r.ProcessingStatus = model.ProcessingStatus(statusText)
	r.LinkedInvoiceID = invoiceID.String
	r.TaskID = taskID.String
	if err := unmarshalResultJSON(&r, []byte(fields), []byte(conf)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) SaveExtractionResult(ctx context.Context, result *model.ExtractionResult, expectedVersion int64) error {
	fields, conf, err := marshalResultJSON(result)
	if err != nil {
		return err
	}
	result.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_results SET
			fields = ?,
			field_confidence = ?,
			overall_confidence = ?,
			processing_status = ?,
			linked_invoice_id = NULLIF(?, ''),
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		string(fields), string(conf), result.OverallConfidence, string(result.ProcessingStatus),
		result.LinkedInvoiceID, result.UpdatedAt, result.ID, expectedVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save result %s", result.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: save result %s", result.ID)
	}
	if n == 0 {
		return eris.Wrapf(ErrVersionConflict, "result %s at version %d", result.ID, expectedVersion)
	}
	result.Version = expectedVersion + 1
	return nil
}

func (s *SQLiteStore) LoadOrCreateValidationRecord(ctx context.Context, resultID string) (*model.ValidationRecord, error) {
	var (
		rec         model.ValidationRecord
		corrections string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, result_id, validated_by, corrections_made, notes, accuracy_rating, validated_at
		 FROM validation_records WHERE result_id = ?`, resultID,
	).Scan(&rec.ID, &rec.ResultID, &rec.ValidatedBy, &corrections, &rec.Notes, &rec.AccuracyRating, &rec.ValidatedAt)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return &model.ValidationRecord{ID: uuid.NewString(), ResultID: resultID}, nil
		}
		return nil, eris.Wrapf(err, "sqlite: load validation record for %s", resultID)
	}
	if err := json.Unmarshal([]byte(corrections), &rec.CorrectionsMade); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode corrections for %s", resultID)
	}
	return &rec, nil
}

func (s *SQLiteStore) SaveValidationRecord(ctx context.Context, rec *model.ValidationRecord) error {
	corrections, err := json.Marshal(rec.CorrectionsMade)
	if err != nil {
		return eris.Wrapf(err, "sqlite: encode corrections for %s", rec.ResultID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validation_records (id, result_id, validated_by, corrections_made, notes, accuracy_rating, validated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (result_id) DO UPDATE SET
			validated_by = excluded.validated_by,
			corrections_made = excluded.corrections_made,
			notes = excluded.notes,
			accuracy_rating = excluded.accuracy_rating,
			validated_at = excluded.validated_at`,
		rec.ID, rec.ResultID, rec.ValidatedBy, string(corrections), rec.Notes, rec.AccuracyRating, rec.ValidatedAt,
	)
	return eris.Wrapf(err, "sqlite: save validation record for %s", rec.ResultID)
}

func (s *SQLiteStore) ListValidationRecords(ctx context.Context, limit int) ([]model.ValidationRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, result_id, validated_by, corrections_made, notes, accuracy_rating, validated_at
		 FROM validation_records ORDER BY validated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validation records")
	}
	defer rows.Close()

	var out []model.ValidationRecord
	for rows.Next() {
		var (
			rec         model.ValidationRecord
			corrections string
		)
		if err := rows.Scan(&rec.ID, &rec.ResultID, &rec.ValidatedBy, &corrections, &rec.Notes, &rec.AccuracyRating, &rec.ValidatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation record")
		}
		if err := json.Unmarshal([]byte(corrections), &rec.CorrectionsMade); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode corrections for %s", rec.ResultID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list validation records")
}
