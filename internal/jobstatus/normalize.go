// Package jobstatus normalizes the external OCR job engine's raw task states
// into the stable four-state status exposed to clients.
package jobstatus

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/scanvoice/review-engine/internal/model"
)

// ErrTaskNotFound marks a task identifier the engine has no record of. The
// engine reports unknown task ids as PENDING with an empty payload, so that
// combination is deliberately surfaced as not-found instead of a forever-
// pending status.
var ErrTaskNotFound = eris.New("jobstatus: task not found")

// nominalTotalSeconds is the flat processing-time assumption used to
// synthesize an ETA when the engine does not report one.
const nominalTotalSeconds = 60.0

// defaultProgress per raw state, for states that carry no payload progress.
const (
	progressStarted  = 10
	progressRetry    = 25
	progressFallback = 50
)

// Normalize maps a raw engine state to the client-facing JobStatus.
func Normalize(raw *model.RawJobState) (*model.JobStatus, error) {
	st := &model.JobStatus{TaskID: raw.TaskID}

	switch raw.State {
	case "PENDING":
		if raw.Result == nil {
			return nil, eris.Wrapf(ErrTaskNotFound, "task %s", raw.TaskID)
		}
		st.Status = model.JobPending
		st.Progress = 0
		st.Message = "waiting to be processed"

	case "STARTED":
		st.Status = model.JobProcessing
		st.Progress = progressStarted
		st.Message = "processing has started"

	case "PROGRESS":
		st.Status = model.JobProcessing
		st.Progress = progressFallback
		if raw.Progress != nil {
			st.Progress = *raw.Progress
		}
		st.Message = raw.Message
		st.ETASeconds = raw.ETASeconds

	case "RETRY":
		st.Status = model.JobProcessing
		st.Progress = progressRetry
		st.Message = "being retried after failure"

	case "SUCCESS":
		st.Status = model.JobCompleted
		st.Progress = 100
		st.Result = raw.Result

	case "FAILURE":
		st.Status = model.JobFailed
		st.Progress = 0
		st.Error = raw.Error

	case "REVOKED":
		st.Status = model.JobFailed
		st.Error = "task was revoked"

	default:
		return nil, eris.Errorf("jobstatus: unknown engine state %q for task %s", raw.State, raw.TaskID)
	}

	if st.Status == model.JobProcessing && st.ETASeconds == nil {
		eta := int(math.Round((100 - float64(st.Progress)) / 100 * nominalTotalSeconds))
		st.ETASeconds = &eta
	}
	return st, nil
}

// IsNotFound reports whether err denotes an unknown task id.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrTaskNotFound)
}
