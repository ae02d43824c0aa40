package interfaces

import "time"

// TaskStatus reports the current state of one scheduled maintenance task
type TaskStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int64      `json:"run_count"`
}

// MaintenanceService runs cron-scheduled background upkeep: periodic
// artifact rescans and archive retention sweeps.
type MaintenanceService interface {
	// Start schedules the configured tasks and begins execution
	Start() error

	// Stop halts the scheduler, waiting for a running task to finish
	Stop()

	// TriggerRescanNow runs the artifact rescan immediately
	TriggerRescanNow() error

	// IsRunning returns true while the scheduler is active
	IsRunning() bool

	// TaskStatuses returns the status of every registered task
	TaskStatuses() []TaskStatus
}
