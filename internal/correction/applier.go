// Package correction applies validated human corrections to extraction
// results and orchestrates the full review flow: validate, mutate,
// recompute confidence, audit, and optionally hand off to invoice creation.
package correction

import (
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/fieldpath"
	"github.com/scanvoice/review-engine/internal/model"
)

// Apply mutates result.Fields with the given corrections, in order. The
// tree is cloned first so a failed request never leaves partial mutations
// visible to other readers of the original. Paths that fail to resolve are
// logged and skipped, never fatal to the batch; only successfully written
// paths are returned.
func Apply(result *model.ExtractionResult, corrections map[string]any, order []string) []string {
	if len(order) != len(corrections) {
		order = make([]string, 0, len(corrections))
		for p := range corrections {
			order = append(order, p)
		}
	}

	clone := fieldpath.Clone(result.Fields)
	updated := make([]string, 0, len(order))
	for _, path := range order {
		if err := fieldpath.Assign(clone, path, corrections[path]); err != nil {
			zap.L().Warn("correction path skipped",
				zap.String("result_id", result.ID),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		updated = append(updated, path)
	}

	result.Fields = clone
	return updated
}
