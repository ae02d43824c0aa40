// Package registry is the in-memory source of truth for job state. Jobs
// are tracked per kind, every read returns a snapshot, and lifecycle
// transitions are validated: illegal transitions are no-ops, never errors.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// Service implements the job registry over mutex-guarded maps
type Service struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	order  map[models.JobKind][]string // insertion order per kind
	logger arbor.ILogger
}

// NewService creates an empty registry
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		jobs:   make(map[string]*models.Job),
		order:  make(map[models.JobKind][]string),
		logger: logger,
	}
}

// Create mints a job id, stores the job as queued and returns a snapshot.
// Job ids are UUIDs and never reused.
func (s *Service) Create(kind models.JobKind, config map[string]interface{}) *models.Job {
	job := models.NewJob(uuid.New().String(), kind, config)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.order[kind] = append(s.order[kind], job.ID)
	s.mu.Unlock()

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Msg("Job created")

	return job.Clone()
}

// Get returns a snapshot of the job, scoped by kind. A job stored under a
// different kind reads as not found so endpoint families stay isolated.
func (s *Service) Get(kind models.JobKind, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || job.Kind != kind {
		return nil, interfaces.ErrJobNotFound
	}
	return job.Clone(), nil
}

// Lookup returns a snapshot of the job regardless of kind
func (s *Service) Lookup(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns summaries for all jobs of a kind in insertion order
func (s *Service) List(kind models.JobKind) []*models.JobSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[kind]
	summaries := make([]*models.JobSummary, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			summaries = append(summaries, job.Summary())
		}
	}
	return summaries
}

// TransitionRunning moves a queued job to running
func (s *Service) TransitionRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransitionTo(models.JobStatusRunning) {
		return false
	}

	job.MarkRunning()
	return true
}

// UpdateProgress applies a worker progress report to a running job.
// Progress is clamped monotonic non-decreasing; regressive values still
// update the step and status detail fields.
func (s *Service) UpdateProgress(id string, update models.ProgressUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return false
	}

	if update.Progress > job.Progress {
		job.Progress = update.Progress
	}
	if update.Step != "" {
		job.CurrentStep = update.Step
	}
	if update.Status != "" {
		job.StatusDetails = update.Status
	}
	return true
}

// Complete moves a running job to completed with its result payload
func (s *Service) Complete(id string, result map[string]interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransitionTo(models.JobStatusCompleted) {
		return false
	}

	job.MarkCompleted(result)

	s.logger.Debug().Str("job_id", id).Msg("Job completed")
	return true
}

// Fail moves a queued or running job to failed with an error message
func (s *Service) Fail(id string, errorMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransitionTo(models.JobStatusFailed) {
		return false
	}

	job.MarkFailed(errorMsg)

	s.logger.Debug().Str("job_id", id).Str("error", errorMsg).Msg("Job failed")
	return true
}

// MarkCancelled moves a queued or running job to cancelled
func (s *Service) MarkCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransitionTo(models.JobStatusCancelled) {
		return false
	}

	job.MarkCancelled()

	s.logger.Debug().Str("job_id", id).Msg("Job cancelled")
	return true
}

// CountByStatus returns the number of jobs per status across all kinds
func (s *Service) CountByStatus() map[models.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}

// Ensure Service implements JobRegistry interface
var _ interfaces.JobRegistry = (*Service)(nil)
