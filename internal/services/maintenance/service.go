// Package maintenance runs cron-scheduled background upkeep: periodic
// artifact rescans so the result index tracks files written outside job
// flows, and retention sweeps over the job history archive.
package maintenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

const (
	taskRescan    = "artifact-rescan"
	taskRetention = "archive-retention"
)

// task tracks one scheduled function's execution history
type task struct {
	name     string
	schedule string
	entryID  cron.EntryID

	mu        sync.Mutex
	lastRun   *time.Time
	lastError string
	runCount  int64
}

func (t *task) record(err error) {
	now := time.Now().UTC()
	t.mu.Lock()
	t.lastRun = &now
	t.runCount++
	if err != nil {
		t.lastError = err.Error()
	} else {
		t.lastError = ""
	}
	t.mu.Unlock()
}

// Service implements MaintenanceService on a robfig/cron scheduler
type Service struct {
	catalog       interfaces.ResultCatalog
	archive       interfaces.ArchiveStorage
	retentionDays int
	logger        arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	tasks   []*task
	running bool
}

// NewService creates a maintenance service. Archive may be nil, in which
// case the retention task is not scheduled.
func NewService(catalog interfaces.ResultCatalog, archive interfaces.ArchiveStorage, cfg common.MaintenanceConfig, logger arbor.ILogger) *Service {
	s := &Service{
		catalog:       catalog,
		archive:       archive,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		cron:          cron.New(),
	}

	s.tasks = append(s.tasks, &task{name: taskRescan, schedule: cfg.RescanSchedule})
	if archive != nil && cfg.RetentionDays > 0 {
		s.tasks = append(s.tasks, &task{name: taskRetention, schedule: cfg.RetentionSchedule})
	}
	return s
}

// Start schedules the configured tasks and begins execution
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	for _, t := range s.tasks {
		t := t
		var fn func() error
		switch t.name {
		case taskRescan:
			fn = s.runRescan
		case taskRetention:
			fn = s.runRetention
		}

		entryID, err := s.cron.AddFunc(t.schedule, func() {
			t.record(fn())
		})
		if err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", t.name, t.schedule, err)
		}
		t.entryID = entryID
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for a running task to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	<-stopCtx.Done()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// TriggerRescanNow runs the artifact rescan immediately, outside the
// schedule. The run still counts toward the task's history.
func (s *Service) TriggerRescanNow() error {
	err := s.runRescan()
	for _, t := range s.tasks {
		if t.name == taskRescan {
			t.record(err)
		}
	}
	return err
}

// IsRunning returns true while the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TaskStatuses returns the status of every registered task
func (s *Service) TaskStatuses() []interfaces.TaskStatus {
	s.mu.Lock()
	running := s.running
	entries := make(map[cron.EntryID]cron.Entry)
	for _, entry := range s.cron.Entries() {
		entries[entry.ID] = entry
	}
	s.mu.Unlock()

	statuses := make([]interfaces.TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		t.mu.Lock()
		status := interfaces.TaskStatus{
			Name:      t.name,
			Schedule:  t.schedule,
			LastRun:   t.lastRun,
			LastError: t.lastError,
			RunCount:  t.runCount,
		}
		t.mu.Unlock()

		if running {
			if entry, ok := entries[t.entryID]; ok && !entry.Next.IsZero() {
				next := entry.Next
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *Service) runRescan() error {
	if err := s.catalog.Rescan(); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled artifact rescan failed")
		return err
	}
	return nil
}

func (s *Service) runRetention() error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.archive.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Archive retention sweep failed")
		return err
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Archive retention sweep removed records")
	}
	return nil
}

// Ensure Service implements MaintenanceService interface
var _ interfaces.MaintenanceService = (*Service)(nil)
