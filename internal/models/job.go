// -----------------------------------------------------------------------
// Job - Lifecycle state for asynchronous compute jobs
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// JobKind identifies the analytical job family
type JobKind string

const (
	JobKindForecast JobKind = "forecast"
	JobKindProfile  JobKind = "profile"
	JobKindPypsa    JobKind = "pypsa"
)

// IsValidJobKind checks if a given JobKind is one of the valid constants
func IsValidJobKind(kind JobKind) bool {
	switch kind {
	case JobKindForecast, JobKindProfile, JobKindPypsa:
		return true
	default:
		return false
	}
}

// Room returns the realtime room name for a job of this kind.
// Rooms are named "<kind>-job-<id>".
func (k JobKind) Room(jobID string) string {
	return fmt.Sprintf("%s-job-%s", k, jobID)
}

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true for completed, failed and cancelled
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo reports whether a transition from s to next is legal.
// The lifecycle is monotonic and one-way: queued -> running -> terminal,
// with queued -> failed (spawn error) and queued -> cancelled (cancel before
// admission) as permitted shortcuts. Terminal states accept nothing.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusFailed || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}

// Job represents one user-submitted analytical request with a lifecycle.
// Mutable fields are owned by the registry; everything handed to callers
// is a snapshot.
type Job struct {
	// Core identification
	ID   string  `json:"id"`
	Kind JobKind `json:"kind"`

	// Lifecycle state
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"` // 0..100, monotonic while running

	// Worker-reported detail
	CurrentStep   string `json:"current_step,omitempty"`
	StatusDetails string `json:"status_details,omitempty"`

	// Configuration (immutable snapshot at creation time)
	Config map[string]interface{} `json:"config,omitempty"`

	// Terminal payloads: exactly one of Result and Error is populated for
	// completed/failed; cancelled populates neither
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`

	// Timestamps
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a queued job with the given id, kind and config
func NewJob(id string, kind JobKind, config map[string]interface{}) *Job {
	if config == nil {
		config = make(map[string]interface{})
	}
	return &Job{
		ID:          id,
		Kind:        kind,
		Status:      JobStatusQueued,
		Progress:    0,
		Config:      config,
		SubmittedAt: time.Now(),
	}
}

// Clone returns a snapshot copy of the job. Config and Result maps are
// copied one level deep, which is sufficient because the registry never
// mutates nested values after they are stored.
func (j *Job) Clone() *Job {
	clone := *j

	if j.Config != nil {
		clone.Config = make(map[string]interface{}, len(j.Config))
		for k, v := range j.Config {
			clone.Config[k] = v
		}
	}
	if j.Result != nil {
		clone.Result = make(map[string]interface{}, len(j.Result))
		for k, v := range j.Result {
			clone.Result[k] = v
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		clone.FinishedAt = &t
	}

	return &clone
}

// MarkRunning transitions the job to running
func (j *Job) MarkRunning() {
	j.Status = JobStatusRunning
	now := time.Now()
	j.StartedAt = &now
}

// MarkCompleted transitions the job to completed with its result payload.
// Progress snaps to 100.
func (j *Job) MarkCompleted(result map[string]interface{}) {
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Result = result
	now := time.Now()
	j.FinishedAt = &now
}

// MarkFailed transitions the job to failed with an error message.
// Progress freezes at its last observed value.
func (j *Job) MarkFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.Error = errorMsg
	now := time.Now()
	j.FinishedAt = &now
}

// MarkCancelled transitions the job to cancelled. Neither result nor error
// is populated.
func (j *Job) MarkCancelled() {
	j.Status = JobStatusCancelled
	now := time.Now()
	j.FinishedAt = &now
}

// Summary trims the job to listing fields, dropping config and result payloads
func (j *Job) Summary() *JobSummary {
	return &JobSummary{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		Error:       j.Error,
		SubmittedAt: j.SubmittedAt,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
	}
}

// JobSummary is the trimmed listing view of a job (no large payloads)
type JobSummary struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ProgressUpdate carries one worker-reported progress event.
// Fields mirror the worker wire format; absent optional fields are empty.
type ProgressUpdate struct {
	Progress int    `json:"progress"`
	Step     string `json:"step,omitempty"`
	Status   string `json:"status,omitempty"`
	Sector   string `json:"sector,omitempty"`
}
