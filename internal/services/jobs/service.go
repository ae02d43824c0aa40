// Package jobs orchestrates the submission flow: validate the config,
// create the registry entry, start the worker through the supervisor, and
// bridge worker outcomes back into the registry, the event bus, the
// artifact store and the history archive.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
	"github.com/ternarybob/fulmen/internal/services/discovery"
)

// nameArgPattern bounds sector and scenario names used in synchronous
// worker invocations and cache keys.
var nameArgPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Timeouts carries the per-kind worker deadlines
type Timeouts struct {
	Forecast time.Duration
	Profile  time.Duration
	Pypsa    time.Duration
	Extract  time.Duration // synchronous data/extraction calls
	Max      time.Duration // upper bound for per-request overrides
}

// TTLs carries the cache lifetimes for the synchronous data paths
type TTLs struct {
	Sector      time.Duration
	Correlation time.Duration
	Results     time.Duration
}

// TimeoutsFromConfig resolves the worker deadlines from configuration
func TimeoutsFromConfig(cfg common.WorkersConfig) Timeouts {
	return Timeouts{
		Forecast: common.ParseDurationOr(cfg.ForecastTimeout, 10*time.Minute),
		Profile:  common.ParseDurationOr(cfg.ProfileTimeout, 15*time.Minute),
		Pypsa:    common.ParseDurationOr(cfg.PypsaTimeout, 30*time.Minute),
		Extract:  common.ParseDurationOr(cfg.ExtractTimeout, 2*time.Minute),
		Max:      common.ParseDurationOr(cfg.MaxTimeout, 2*time.Hour),
	}
}

// TTLsFromConfig resolves the cache lifetimes from configuration
func TTLsFromConfig(cfg common.CacheConfig) TTLs {
	return TTLs{
		Sector:      common.ParseDurationOr(cfg.SectorTTL, 10*time.Minute),
		Correlation: common.ParseDurationOr(cfg.CorrelationTTL, 10*time.Minute),
		Results:     common.ParseDurationOr(cfg.ResultsTTL, 30*time.Minute),
	}
}

// Service implements JobService
type Service struct {
	registry   interfaces.JobRegistry
	supervisor interfaces.WorkerSupervisor
	validator  interfaces.ValidationService
	events     interfaces.EventService
	cache      interfaces.CacheService
	store      interfaces.ArtifactStore
	catalog    interfaces.ResultCatalog
	archive    interfaces.ArchiveStorage // nil disables history persistence
	timeouts   Timeouts
	ttls       TTLs
	logger     arbor.ILogger

	mu       sync.Mutex
	done     map[string]chan struct{} // closed after the terminal registry transition
	draining bool
}

// Deps bundles the collaborating services
type Deps struct {
	Registry   interfaces.JobRegistry
	Supervisor interfaces.WorkerSupervisor
	Validator  interfaces.ValidationService
	Events     interfaces.EventService
	Cache      interfaces.CacheService
	Store      interfaces.ArtifactStore
	Catalog    interfaces.ResultCatalog
	Archive    interfaces.ArchiveStorage
}

// NewService creates the job orchestration service
func NewService(deps Deps, timeouts Timeouts, ttls TTLs, logger arbor.ILogger) *Service {
	return &Service{
		registry:   deps.Registry,
		supervisor: deps.Supervisor,
		validator:  deps.Validator,
		events:     deps.Events,
		cache:      deps.Cache,
		store:      deps.Store,
		catalog:    deps.Catalog,
		archive:    deps.Archive,
		timeouts:   timeouts,
		ttls:       ttls,
		logger:     logger,
		done:       make(map[string]chan struct{}),
	}
}

// SubmitForecast validates and starts a demand forecast job
func (s *Service) SubmitForecast(ctx context.Context, req *models.ForecastRequest) (*models.Job, error) {
	if result := s.validator.ValidateForecast(req); !result.Valid {
		return nil, models.NewValidationError(result)
	}
	timeout, err := s.resolveTimeout(req.TimeoutOverride, s.timeouts.Forecast)
	if err != nil {
		return nil, err
	}
	config, err := req.ToConfigMap()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}
	return s.submit(ctx, models.JobKindForecast, config, timeout)
}

// SubmitProfile validates and starts a load-profile generation job
func (s *Service) SubmitProfile(ctx context.Context, req *models.ProfileRequest) (*models.Job, error) {
	if result := s.validator.ValidateProfile(req); !result.Valid {
		return nil, models.NewValidationError(result)
	}
	timeout, err := s.resolveTimeout(req.TimeoutOverride, s.timeouts.Profile)
	if err != nil {
		return nil, err
	}
	config, err := req.ToConfigMap()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}
	return s.submit(ctx, models.JobKindProfile, config, timeout)
}

// SubmitOptimization validates and starts a power-system optimization job
func (s *Service) SubmitOptimization(ctx context.Context, req *models.OptimizationRequest) (*models.Job, error) {
	if result := s.validator.ValidateOptimization(req); !result.Valid {
		return nil, models.NewValidationError(result)
	}
	timeout, err := s.resolveTimeout(req.TimeoutOverride, s.timeouts.Pypsa)
	if err != nil {
		return nil, err
	}
	config, err := req.ToConfigMap()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}
	return s.submit(ctx, models.JobKindPypsa, config, timeout)
}

// resolveTimeout applies the per-request override, bounded by the
// configured maximum, falling back to the kind default.
func (s *Service) resolveTimeout(override func() (time.Duration, error), fallback time.Duration) (time.Duration, error) {
	requested, err := override()
	if err != nil {
		return 0, models.NewValidationError(models.Invalid(fmt.Sprintf("invalid timeout: %v", err)))
	}
	if requested == 0 {
		return fallback, nil
	}
	if requested < 0 || (s.timeouts.Max > 0 && requested > s.timeouts.Max) {
		return 0, models.NewValidationError(models.Invalid(
			fmt.Sprintf("timeout must be between 0 and %s", s.timeouts.Max)))
	}
	return requested, nil
}

// submit creates the registry entry and hands the job to the supervisor on
// a background goroutine. The returned snapshot is always queued.
func (s *Service) submit(_ context.Context, kind models.JobKind, config map[string]interface{}, timeout time.Duration) (*models.Job, error) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return nil, interfaces.ErrShuttingDown
	}
	job := s.registry.Create(kind, config)
	done := make(chan struct{})
	s.done[job.ID] = done
	s.mu.Unlock()

	room := kind.Room(job.ID)
	spec := interfaces.WorkerSpec{
		JobID:   job.ID,
		Kind:    kind,
		Config:  config,
		Timeout: timeout,
		Sink:    s.progressSink(job.ID, room),
		OnStarted: func() {
			if s.registry.TransitionRunning(job.ID) {
				s.events.Publish(room, interfaces.EventStatus, map[string]interface{}{
					"jobId":  job.ID,
					"status": string(models.JobStatusRunning),
				})
			}
		},
	}

	common.SafeGo(s.logger, "job-run-"+job.ID, func() {
		defer s.finishJob(job.ID, done)

		// Admission is not bound to the submission request lifetime.
		if err := s.supervisor.Start(context.Background(), spec); err != nil {
			s.recordOutcome(kind, job.ID, room, nil, err)
			return
		}
		result, err := s.supervisor.Await(job.ID)
		s.recordOutcome(kind, job.ID, room, result, err)
	})

	s.logger.Info().Str("job_id", job.ID).Str("kind", string(kind)).Msg("Job submitted")
	return job, nil
}

// progressSink forwards worker progress into the registry first, then to
// the room, so status readers never lag behind published events.
func (s *Service) progressSink(jobID, room string) interfaces.ProgressSink {
	return interfaces.ProgressSinkFunc(func(update models.ProgressUpdate) {
		if !s.registry.UpdateProgress(jobID, update) {
			return
		}
		payload := map[string]interface{}{
			"jobId":    jobID,
			"progress": update.Progress,
		}
		if update.Step != "" {
			payload["step"] = update.Step
		}
		if update.Status != "" {
			payload["status"] = update.Status
		}
		if update.Sector != "" {
			payload["sector"] = update.Sector
		}
		s.events.Publish(room, interfaces.EventProgress, payload)
	})
}

// recordOutcome applies the worker's terminal outcome to the registry,
// persists artifacts and publishes the terminal event.
func (s *Service) recordOutcome(kind models.JobKind, jobID, room string, result map[string]interface{}, err error) {
	switch {
	case err == nil:
		s.persistResult(kind, jobID, result)
		if s.registry.Complete(jobID, result) {
			s.events.Publish(room, interfaces.EventCompleted, map[string]interface{}{
				"jobId":  jobID,
				"result": result,
			})
		}

	case errors.Is(err, interfaces.ErrWorkerCancelled):
		if s.registry.MarkCancelled(jobID) {
			s.events.Publish(room, interfaces.EventCancelled, map[string]interface{}{
				"jobId": jobID,
			})
		}

	default:
		message := failureMessage(err)
		if s.registry.Fail(jobID, message) {
			s.events.Publish(room, interfaces.EventError, map[string]interface{}{
				"jobId": jobID,
				"error": message,
			})
		}
	}
}

// failureMessage strips the classification prefix so the registry stores
// the worker's own message.
func failureMessage(err error) string {
	message := err.Error()
	if errors.Is(err, interfaces.ErrWorkerFailed) {
		message = strings.TrimPrefix(message, interfaces.ErrWorkerFailed.Error()+": ")
	}
	return message
}

// persistResult writes kind-specific artifacts for a completed job.
// Profile results become discoverable documents under the profile
// directory. Persistence failures are logged, never fatal: the in-memory
// result is already authoritative.
func (s *Service) persistResult(kind models.JobKind, jobID string, result map[string]interface{}) {
	if kind != models.JobKindProfile || s.store == nil || result == nil {
		return
	}
	profileID, _ := result["profile_id"].(string)
	if profileID == "" || !nameArgPattern.MatchString(profileID) {
		return
	}

	relPath := discovery.ProfileDir + "/" + profileID + ".json"
	if err := s.store.SaveJSON(relPath, result); err != nil {
		s.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to persist profile artifact")
		return
	}
	if s.catalog != nil {
		if err := s.catalog.Rescan(); err != nil {
			s.logger.Warn().Err(err).Msg("Post-job rescan failed")
		}
	}
}

// finishJob archives the terminal snapshot and releases cancel waiters
func (s *Service) finishJob(jobID string, done chan struct{}) {
	if s.archive != nil {
		if job, err := s.registry.Lookup(jobID); err == nil {
			if record := models.NewJobRecord(job); record != nil {
				if err := s.archive.SaveJob(record); err != nil {
					s.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to archive job record")
				}
			}
		}
	}

	close(done)
	s.mu.Lock()
	delete(s.done, jobID)
	s.mu.Unlock()
}

// Status returns the registry snapshot for a job, scoped by kind
func (s *Service) Status(kind models.JobKind, jobID string) (*models.Job, error) {
	return s.registry.Get(kind, jobID)
}

// List returns summaries for all jobs of a kind
func (s *Service) List(kind models.JobKind) []*models.JobSummary {
	return s.registry.List(kind)
}

// Cancel terminates a job and returns only after the supervisor confirmed
// the worker is gone and the registry records the cancelled state.
func (s *Service) Cancel(ctx context.Context, kind models.JobKind, jobID string) error {
	job, err := s.registry.Get(kind, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return interfaces.ErrNotCancellable
	}

	s.mu.Lock()
	done := s.done[jobID]
	s.mu.Unlock()

	s.supervisor.Cancel(jobID)

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for worker termination: %w", ctx.Err())
		}
	}

	job, err = s.registry.Get(kind, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusCancelled {
		// The worker finished before the signal landed.
		return interfaces.ErrNotCancellable
	}
	return nil
}

// SectorData returns demand data for one sector, serving from cache when
// fresh.
func (s *Service) SectorData(ctx context.Context, sector string) (map[string]interface{}, string, error) {
	return s.cachedWorkerCall(ctx, cachedCall{
		cacheKey: "sector-data-" + sector,
		ttl:      s.ttls.Sector,
		kind:     models.JobKindForecast,
		nameArg:  sector,
		config:   map[string]interface{}{"action": "sector_data", "sector": sector},
	})
}

// Correlation returns the correlation table for one sector, cached the
// same way as SectorData.
func (s *Service) Correlation(ctx context.Context, sector string) (map[string]interface{}, string, error) {
	return s.cachedWorkerCall(ctx, cachedCall{
		cacheKey: "correlation-" + sector,
		ttl:      s.ttls.Correlation,
		kind:     models.JobKindForecast,
		nameArg:  sector,
		config:   map[string]interface{}{"action": "correlation", "sector": sector},
	})
}

// ExtractResults runs the extraction worker against a solved network and
// caches the summary.
func (s *Service) ExtractResults(ctx context.Context, scenario string) (map[string]interface{}, string, error) {
	return s.cachedWorkerCall(ctx, cachedCall{
		cacheKey: "pypsa-results-" + scenario,
		ttl:      s.ttls.Results,
		kind:     models.JobKindPypsa,
		nameArg:  scenario,
		config:   map[string]interface{}{"action": "extract_results", "scenario_name": scenario},
	})
}

type cachedCall struct {
	cacheKey string
	ttl      time.Duration
	kind     models.JobKind
	nameArg  string
	config   map[string]interface{}
}

// cachedWorkerCall serves the synchronous request paths: cache hit when
// fresh, otherwise one worker run whose result is cached for the next
// caller. These calls never appear in the job registry.
func (s *Service) cachedWorkerCall(ctx context.Context, call cachedCall) (map[string]interface{}, string, error) {
	if call.nameArg == "" || !nameArgPattern.MatchString(call.nameArg) {
		return nil, "", fmt.Errorf("%w: invalid name %q", interfaces.ErrInvalidRequest, call.nameArg)
	}

	if cached, ok := s.cache.Get(call.cacheKey); ok {
		if data, ok := cached.(map[string]interface{}); ok {
			return data, "cache", nil
		}
	}

	syntheticID := call.cacheKey + "-" + uuid.New().String()
	if err := s.supervisor.Start(ctx, interfaces.WorkerSpec{
		JobID:   syntheticID,
		Kind:    call.kind,
		Config:  call.config,
		Timeout: s.timeouts.Extract,
	}); err != nil {
		return nil, "", err
	}

	result, err := s.supervisor.Await(syntheticID)
	if err != nil {
		return nil, "", err
	}

	if err := s.cache.Set(call.cacheKey, result, call.ttl); err != nil {
		s.logger.Warn().Str("key", call.cacheKey).Err(err).Msg("Failed to cache worker result")
	}
	return result, "script", nil
}

// CompareProfiles loads saved profile artifacts and compares their
// headline statistics synchronously.
func (s *Service) CompareProfiles(_ context.Context, req *models.CompareRequest) (map[string]interface{}, error) {
	if req == nil || len(req.ProfileIDs) < 2 {
		return nil, models.NewValidationError(models.Invalid("at least two profile_ids are required"))
	}

	profiles := make([]map[string]interface{}, 0, len(req.ProfileIDs))
	summaries := make([]models.ProfileSummary, 0, len(req.ProfileIDs))
	for _, id := range req.ProfileIDs {
		doc, err := s.catalog.GetProfile(id)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}

		summary := doc.ComputeSummary()
		if doc.Statistics != nil {
			summary = *doc.Statistics
		}
		summaries = append(summaries, summary)
		profiles = append(profiles, map[string]interface{}{
			"profile_id": doc.ProfileID,
			"method":     doc.Method,
			"years":      doc.Years,
			"statistics": summary,
		})
	}

	return map[string]interface{}{
		"profiles": profiles,
		"deltas": map[string]interface{}{
			"peak_load":    spread(summaries, func(s models.ProfileSummary) float64 { return s.PeakLoad }),
			"average_load": spread(summaries, func(s models.ProfileSummary) float64 { return s.AverageLoad }),
			"total_energy": spread(summaries, func(s models.ProfileSummary) float64 { return s.TotalEnergy }),
			"load_factor":  spread(summaries, func(s models.ProfileSummary) float64 { return s.LoadFactor }),
		},
	}, nil
}

// spread summarizes one metric across the compared profiles
func spread(summaries []models.ProfileSummary, metric func(models.ProfileSummary) float64) map[string]float64 {
	min := metric(summaries[0])
	max := min
	for _, s := range summaries[1:] {
		v := metric(s)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return map[string]float64{"min": min, "max": max, "spread": max - min}
}

// Shutdown stops accepting submissions, terminates running workers and
// waits for their outcomes to be recorded.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	pending := make([]chan struct{}, 0, len(s.done))
	for _, done := range s.done {
		pending = append(pending, done)
	}
	s.mu.Unlock()

	if err := s.supervisor.Shutdown(ctx); err != nil {
		return err
	}
	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Ensure Service implements JobService interface
var _ interfaces.JobService = (*Service)(nil)
