// Package export writes the validation audit trail to XLSX for accounting
// review outside the system.
package export

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/confidence"
	"github.com/scanvoice/review-engine/internal/model"
)

// Store is the slice of the persistence collaborator the exporter needs.
type Store interface {
	ListValidationRecords(ctx context.Context, limit int) ([]model.ValidationRecord, error)
	GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error)
}

var auditHeader = []string{
	"record_id", "result_id", "validated_by", "validated_at",
	"accuracy_rating", "corrections", "notes",
	"overall_confidence", "avg_field_confidence", "fields_below_60",
}

// WriteAuditXLSX exports up to limit validation records to an XLSX workbook
// at path, newest first. Returns the number of exported records.
func WriteAuditXLSX(ctx context.Context, store Store, path string, limit int) (int, error) {
	recs, err := store.ListValidationRecords(ctx, limit)
	if err != nil {
		return 0, eris.Wrap(err, "export: list validation records")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Validations")
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range auditHeader {
		header.AddCell().SetString(h)
	}

	for _, rec := range recs {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.ID)
		row.AddCell().SetString(rec.ResultID)
		row.AddCell().SetString(rec.ValidatedBy)
		row.AddCell().SetString(rec.ValidatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetInt(rec.AccuracyRating)
		row.AddCell().SetString(correctionsCell(rec.CorrectionsMade))
		row.AddCell().SetString(rec.Notes)

		// The confidence columns stay blank when the result is gone.
		result, err := store.GetExtractionResult(ctx, rec.ResultID)
		if err != nil {
			zap.L().Warn("export: result lookup failed",
				zap.String("result_id", rec.ResultID),
				zap.Error(err),
			)
			continue
		}
		stats := confidence.Stats(result.FieldConfidence)
		row.AddCell().SetFloatWithFormat(result.OverallConfidence, "0.0")
		row.AddCell().SetFloatWithFormat(stats.AverageConfidence, "0.0")
		row.AddCell().SetInt(stats.FieldsBelow60)
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("audit exported",
		zap.String("path", path),
		zap.Int("records", len(recs)),
	)
	return len(recs), nil
}

// correctionsCell flattens a corrections map into a stable "path=value"
// listing, sorted so the same record always renders the same cell.
func correctionsCell(corrections map[string]any) string {
	paths := make([]string, 0, len(corrections))
	for p := range corrections {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := ""
	for i, p := range paths {
		if i > 0 {
			out += "; "
		}
		v, err := json.Marshal(corrections[p])
		if err != nil {
			out += p + "=?"
			continue
		}
		out += p + "=" + string(v)
	}
	return out
}
