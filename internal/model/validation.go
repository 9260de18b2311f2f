package model

import "time"

// ValidationRecord is the audit trail for one extraction result: who
// corrected what and when. At most one record exists per result; repeated
// corrections merge into the same record.
type ValidationRecord struct {
	ID              string         `json:"id"`
	ResultID        string         `json:"result_id"`
	ValidatedBy     string         `json:"validated_by"`
	CorrectionsMade map[string]any `json:"corrections_made"`
	Notes           string         `json:"notes,omitempty"`
	AccuracyRating  int            `json:"accuracy_rating"`
	ValidatedAt     time.Time      `json:"validated_at"`
}
