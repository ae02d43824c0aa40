// Package status tracks the coarse lifecycle state of the process and
// aggregates operational counters for the status endpoint.
package status

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

// StatusRoom is the event room where state changes are announced
const StatusRoom = "status"

// Service implements StatusService
type Service struct {
	registry   interfaces.JobRegistry
	supervisor interfaces.WorkerSupervisor
	events     interfaces.EventService
	logger     arbor.ILogger
	startedAt  time.Time

	mu       sync.RWMutex
	state    interfaces.AppState
	detail   string
	metadata map[string]interface{}
}

// NewService creates a status service in the starting state
func NewService(registry interfaces.JobRegistry, supervisor interfaces.WorkerSupervisor, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		registry:   registry,
		supervisor: supervisor,
		events:     events,
		logger:     logger,
		startedAt:  time.Now().UTC(),
		state:      interfaces.StateStarting,
		metadata:   make(map[string]interface{}),
	}
}

// SetState records a state change and announces it on the status room
func (s *Service) SetState(state interfaces.AppState, detail string) {
	s.mu.Lock()
	s.state = state
	s.detail = detail
	s.mu.Unlock()

	s.logger.Info().Str("state", string(state)).Str("detail", detail).Msg("Application state changed")

	if s.events != nil {
		s.events.Publish(StatusRoom, interfaces.EventStatus, map[string]interface{}{
			"state":  string(state),
			"detail": detail,
		})
	}
}

// GetState returns the current state
func (s *Service) GetState() interfaces.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetMetadata stores one operational key/value shown by GetStatus
func (s *Service) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	s.metadata[key] = value
	s.mu.Unlock()
}

// GetStatus returns a snapshot of state, metadata and counters
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	state := s.state
	detail := s.detail
	metadata := make(map[string]interface{}, len(s.metadata))
	for k, v := range s.metadata {
		metadata[k] = v
	}
	s.mu.RUnlock()

	jobs := make(map[string]int)
	if s.registry != nil {
		for status, count := range s.registry.CountByStatus() {
			jobs[string(status)] = count
		}
	}

	snapshot := map[string]interface{}{
		"state":          string(state),
		"version":        common.Version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"jobs":           jobs,
		"metadata":       metadata,
	}
	if detail != "" {
		snapshot["detail"] = detail
	}
	if s.supervisor != nil {
		snapshot["running_workers"] = s.supervisor.Running()
	}
	return snapshot
}

// Ensure Service implements StatusService interface
var _ interfaces.StatusService = (*Service)(nil)
