package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/fulmen/internal/models"
)

// ErrInvalidRequest is returned for malformed payloads that fail before
// kind-specific validation runs
var ErrInvalidRequest = errors.New("invalid request")

// ErrShuttingDown is returned for submissions arriving while the service
// drains
var ErrShuttingDown = errors.New("service is shutting down")

// JobService orchestrates the submission flow: validate the config, create
// the registry entry, start the worker, and bridge worker outcomes back
// into the registry and the event bus.
//
// Submission methods return a *models.ValidationError (via errors.As) when
// the config is rejected; the job is not created in that case.
type JobService interface {
	// SubmitForecast validates and starts a demand forecast job
	SubmitForecast(ctx context.Context, req *models.ForecastRequest) (*models.Job, error)

	// SubmitProfile validates and starts a load-profile generation job
	SubmitProfile(ctx context.Context, req *models.ProfileRequest) (*models.Job, error)

	// SubmitOptimization validates and starts a power-system optimization job
	SubmitOptimization(ctx context.Context, req *models.OptimizationRequest) (*models.Job, error)

	// Status returns the registry snapshot for a job, scoped by kind
	Status(kind models.JobKind, jobID string) (*models.Job, error)

	// List returns summaries for all jobs of a kind
	List(kind models.JobKind) []*models.JobSummary

	// Cancel terminates a job. It returns only after the supervisor has
	// confirmed the worker is no longer running and the registry records
	// the cancelled state. Returns ErrJobNotFound for unknown ids and
	// ErrNotCancellable for terminal jobs.
	Cancel(ctx context.Context, kind models.JobKind, jobID string) error

	// SectorData returns demand data for one sector, serving from cache
	// when fresh. The second return names the source: "cache" or "script".
	SectorData(ctx context.Context, sector string) (map[string]interface{}, string, error)

	// Correlation returns the correlation table for one sector, cached
	// the same way as SectorData
	Correlation(ctx context.Context, sector string) (map[string]interface{}, string, error)

	// CompareProfiles loads saved profile artifacts and compares their
	// headline statistics synchronously
	CompareProfiles(ctx context.Context, req *models.CompareRequest) (map[string]interface{}, error)

	// ExtractResults runs the extraction worker against a solved network
	// and caches the summary. The second return names the source.
	ExtractResults(ctx context.Context, scenario string) (map[string]interface{}, string, error)

	// Shutdown stops accepting submissions and terminates running workers
	Shutdown(ctx context.Context) error
}
