package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/fulmen/internal/models"
)

// Worker outcome classification. Await returns exactly one of these,
// wrapped with a human-readable message, for every non-completed run.
var (
	// ErrWorkerFailed covers non-zero exit, missing result line and
	// stdout read failures
	ErrWorkerFailed = errors.New("worker failed")

	// ErrWorkerTimeout is returned when the deadline elapsed and the
	// worker was force-killed
	ErrWorkerTimeout = errors.New("timeout")

	// ErrWorkerCancelled is returned when the job was cancelled by
	// explicit request
	ErrWorkerCancelled = errors.New("cancelled")

	// ErrWorkerExists is returned by Start when a live handle is already
	// registered for the job id
	ErrWorkerExists = errors.New("worker already registered for job")

	// ErrWorkerUnknown is returned by Await when no handle exists for
	// the job id
	ErrWorkerUnknown = errors.New("no worker registered for job")
)

// ProgressSink receives progress events from a running worker. The
// supervisor never knows who listens; callers bind a sink per job at
// Start. Implementations must not block.
type ProgressSink interface {
	Publish(update models.ProgressUpdate)
}

// ProgressSinkFunc adapts a function to the ProgressSink interface
type ProgressSinkFunc func(update models.ProgressUpdate)

// Publish calls the wrapped function
func (f ProgressSinkFunc) Publish(update models.ProgressUpdate) { f(update) }

// WorkerSpec describes one worker launch
type WorkerSpec struct {
	JobID   string
	Kind    models.JobKind
	Config  map[string]interface{}
	Timeout time.Duration
	Sink    ProgressSink

	// OnStarted, when non-nil, is invoked once after the job has passed
	// the admission gate and its child process has spawned, before any
	// progress event is forwarded. Jobs cancelled while still gated never
	// trigger it.
	OnStarted func()
}

// WorkerSupervisor owns the lifecycle of compute workers: it spawns one
// child process per job, parses the stdout event stream, enforces the
// deadline, supports cancellation and classifies the outcome.
//
// At most one live handle exists per job id. Over-cap submissions wait on
// a FIFO admission gate while the job holds queued status.
type WorkerSupervisor interface {
	// Start admits the job, spawns the child process and returns. Spawn
	// errors (missing executable, permission denied) are returned
	// synchronously and no handle is registered. The context cancels the
	// admission wait, not the running worker.
	Start(ctx context.Context, spec WorkerSpec) error

	// Await blocks until the job reaches a terminal state. On success it
	// returns the parsed result payload. Otherwise the error matches one
	// of ErrWorkerFailed, ErrWorkerTimeout or ErrWorkerCancelled via
	// errors.Is. The handle is removed before Await returns.
	Await(jobID string) (map[string]interface{}, error)

	// Cancel signals the worker to terminate, graceful first and forced
	// after the grace period. Returns false for unknown or already
	// terminated jobs. Idempotent.
	Cancel(jobID string) bool

	// Running returns the number of live worker handles
	Running() int

	// Shutdown cancels all live workers and waits for them to terminate
	// or the context to expire
	Shutdown(ctx context.Context) error
}
