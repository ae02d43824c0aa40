package interfaces

import (
	"errors"

	"github.com/ternarybob/fulmen/internal/models"
)

// ErrJobNotFound is returned when a job id is unknown to the registry
var ErrJobNotFound = errors.New("job not found")

// ErrNotCancellable is returned when cancellation targets a job already in
// a terminal state
var ErrNotCancellable = errors.New("job is not in a cancellable state")

// JobRegistry is the source of truth for job state, separated by kind.
// All returned jobs are snapshots; mutating them does not affect stored
// state. Transition methods report whether the transition was applied:
// illegal transitions (for example completing a cancelled job) are no-ops
// returning false, never errors.
type JobRegistry interface {
	// Create mints a job id, stores the job as queued and returns a snapshot
	Create(kind models.JobKind, config map[string]interface{}) *models.Job

	// Get returns a snapshot of the job, scoped by kind
	Get(kind models.JobKind, id string) (*models.Job, error)

	// Lookup returns a snapshot of the job regardless of kind
	Lookup(id string) (*models.Job, error)

	// List returns summaries for all jobs of a kind in insertion order
	List(kind models.JobKind) []*models.JobSummary

	// TransitionRunning moves a queued job to running
	TransitionRunning(id string) bool

	// UpdateProgress applies a worker progress report to a running job.
	// Progress never decreases; regressive values update only the step
	// and status detail fields.
	UpdateProgress(id string, update models.ProgressUpdate) bool

	// Complete moves a running job to completed with its result payload
	Complete(id string, result map[string]interface{}) bool

	// Fail moves a queued or running job to failed with an error message
	Fail(id string, errorMsg string) bool

	// MarkCancelled moves a queued or running job to cancelled
	MarkCancelled(id string) bool

	// CountByStatus returns the number of jobs per status across all kinds
	CountByStatus() map[models.JobStatus]int
}
