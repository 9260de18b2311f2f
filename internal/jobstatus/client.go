package jobstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scanvoice/review-engine/internal/model"
)

// Engine is the external OCR job engine collaborator. It only reports task
// state; this core never blocks on it.
type Engine interface {
	GetJobStatus(ctx context.Context, taskID string) (*model.RawJobState, error)
}

// Transient engine failures are retried with exponential backoff before the
// error is surfaced to the caller.
const (
	maxFetchAttempts = 3
	initialBackoff   = 500 * time.Millisecond
)

// HTTPEngine polls the engine's status endpoint over HTTP. Polling is
// rate-limited so aggressive clients re-polling through us cannot hammer
// the engine.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPEngine creates a rate-limited engine client. pollPerSecond bounds
// outbound status requests; burst is fixed at 1 so waits are even.
func NewHTTPEngine(baseURL string, pollPerSecond float64, timeout time.Duration) *HTTPEngine {
	if pollPerSecond <= 0 {
		pollPerSecond = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(pollPerSecond), 1),
	}
}

// GetJobStatus fetches the raw state for one task, retrying transient
// failures (network errors, 5xx answers) with exponential backoff.
func (e *HTTPEngine) GetJobStatus(ctx context.Context, taskID string) (*model.RawJobState, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		raw, retryable, err := e.fetchOnce(ctx, taskID)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt >= maxFetchAttempts-1 {
			break
		}

		zap.L().Warn("retrying engine status fetch",
			zap.String("task_id", taskID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		timer := time.NewTimer(initialBackoff << attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single status request. The middle return reports
// whether the failure is worth retrying.
func (e *HTTPEngine) fetchOnce(ctx context.Context, taskID string) (*model.RawJobState, bool, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, false, eris.Wrap(err, "jobstatus: rate limit wait")
	}

	url := fmt.Sprintf("%s/tasks/%s/status", e.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, eris.Wrapf(err, "jobstatus: build request for task %s", taskID)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, eris.Wrapf(err, "jobstatus: fetch status for task %s", taskID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, eris.Wrapf(ErrTaskNotFound, "task %s", taskID)
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= http.StatusInternalServerError
		return nil, retryable, eris.Errorf("jobstatus: engine returned %d for task %s", resp.StatusCode, taskID)
	}

	var raw model.RawJobState
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, false, eris.Wrapf(err, "jobstatus: decode status for task %s", taskID)
	}
	if raw.TaskID == "" {
		raw.TaskID = taskID
	}

	zap.L().Debug("engine status fetched",
		zap.String("task_id", taskID),
		zap.String("state", raw.State),
	)
	return &raw, false, nil
}

// Fetch polls the engine once and normalizes the answer.
func Fetch(ctx context.Context, engine Engine, taskID string) (*model.JobStatus, error) {
	raw, err := engine.GetJobStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}
