package model

// RawJobState is the untranslated status payload reported by the external
// OCR job engine for an async extraction task.
type RawJobState struct {
	TaskID     string         `json:"task_id"`
	State      string         `json:"state"`
	Progress   *int           `json:"progress,omitempty"`
	Message    string         `json:"message,omitempty"`
	ETASeconds *int           `json:"eta_seconds,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ClientJobStatus is the four-state client-facing status.
type ClientJobStatus string

const (
	JobPending    ClientJobStatus = "pending"
	JobProcessing ClientJobStatus = "processing"
	JobCompleted  ClientJobStatus = "completed"
	JobFailed     ClientJobStatus = "failed"
)

// JobStatus is the normalized, client-facing view of an async extraction
// job. Derived from RawJobState, never stored.
type JobStatus struct {
	TaskID     string          `json:"task_id"`
	Status     ClientJobStatus `json:"status"`
	Progress   int             `json:"progress"`
	ETASeconds *int            `json:"eta_seconds,omitempty"`
	Message    string          `json:"message,omitempty"`
	Result     map[string]any  `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}
