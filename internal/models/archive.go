// -----------------------------------------------------------------------
// Job Record - Immutable archive entry written at terminal transition
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"
)

// JobRecord is the durable history entry for one finished job. Config and
// result payloads are stored as JSON strings so the record round-trips
// through the archive encoder without type registration.
type JobRecord struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind" badgerhold:"index"`
	Status      string     `json:"status" badgerhold:"index"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Error       string     `json:"error,omitempty"`
	ConfigJSON  string     `json:"config_json,omitempty"`
	ResultJSON  string     `json:"result_json,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time  `json:"finished_at" badgerhold:"index"`
	DurationMS  int64      `json:"duration_ms"`
}

// NewJobRecord converts a terminal job snapshot into an archive record.
// Returns nil if the job is not in a terminal state.
func NewJobRecord(job *Job) *JobRecord {
	if job == nil || !job.Status.IsTerminal() {
		return nil
	}

	record := &JobRecord{
		ID:          job.ID,
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
	}

	if job.FinishedAt != nil {
		record.FinishedAt = *job.FinishedAt
	} else {
		record.FinishedAt = time.Now()
	}

	if job.StartedAt != nil {
		record.DurationMS = record.FinishedAt.Sub(*job.StartedAt).Milliseconds()
	}

	if len(job.Config) > 0 {
		if data, err := json.Marshal(job.Config); err == nil {
			record.ConfigJSON = string(data)
		}
	}
	if len(job.Result) > 0 {
		if data, err := json.Marshal(job.Result); err == nil {
			record.ResultJSON = string(data)
		}
	}

	return record
}

// Config decodes the archived config payload, nil when absent
func (r *JobRecord) Config() map[string]interface{} {
	return decodeJSONMap(r.ConfigJSON)
}

// Result decodes the archived result payload, nil when absent
func (r *JobRecord) Result() map[string]interface{} {
	return decodeJSONMap(r.ResultJSON)
}

func decodeJSONMap(s string) map[string]interface{} {
	if s == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
