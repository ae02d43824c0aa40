// Package supervisor owns the lifecycle of out-of-process compute
// workers. It admits jobs through a FIFO gate bounded by the worker cap,
// spawns one child process per job, parses the stdout event stream,
// enforces deadlines and classifies every outcome as completed, failed,
// timed out or cancelled.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
	"github.com/ternarybob/fulmen/pkg/workerproto"
)

// errAborted is the gate's signal that a job was cancelled while still
// waiting for admission.
var errAborted = errors.New("admission aborted")

// Options configures a supervisor
type Options struct {
	// Cap bounds concurrently running workers; zero means runtime.NumCPU()
	Cap int

	// GracePeriod is the wait between the graceful signal and the hard
	// kill; zero means 5s
	GracePeriod time.Duration

	// WorkDir is the working directory for spawned workers
	WorkDir string

	// Manifest maps job kinds to commands; nil means the built-in defaults
	Manifest *Manifest
}

// handle tracks one job's worker from admission to terminal state
type handle struct {
	jobID string
	kind  models.JobKind

	cancelOnce sync.Once
	cancelCh   chan struct{}

	mu  sync.Mutex
	cmd *exec.Cmd // set once the child has spawned

	done   chan struct{} // closed when the outcome is recorded
	result map[string]interface{}
	err    error
}

func (h *handle) signalCancel() {
	h.cancelOnce.Do(func() { close(h.cancelCh) })
}

func (h *handle) finish(result map[string]interface{}, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

func (h *handle) terminated() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Service implements WorkerSupervisor
type Service struct {
	gate     *admissionGate
	grace    time.Duration
	workDir  string
	manifest *Manifest
	logger   arbor.ILogger

	mu      sync.Mutex
	handles map[string]*handle
}

// NewService creates a worker supervisor
func NewService(opts Options, logger arbor.ILogger) *Service {
	cap := opts.Cap
	if cap < 1 {
		cap = runtime.NumCPU()
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	manifest := opts.Manifest
	if manifest == nil {
		manifest = DefaultManifest()
	}

	return &Service{
		gate:     newAdmissionGate(cap),
		grace:    grace,
		workDir:  opts.WorkDir,
		manifest: manifest,
		logger:   logger,
		handles:  make(map[string]*handle),
	}
}

// Start admits the job through the FIFO gate, spawns its worker and
// launches the monitoring goroutines. The command is resolved before the
// gate so a missing executable fails without consuming a slot. The
// context cancels the admission wait only; it does not bind the running
// worker.
func (s *Service) Start(ctx context.Context, spec interfaces.WorkerSpec) error {
	argv, err := s.manifest.Resolve(spec.Kind, spec.Config)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrWorkerFailed, err)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrWorkerFailed, err)
	}

	h := &handle{
		jobID:    spec.JobID,
		kind:     spec.Kind,
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.handles[spec.JobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", interfaces.ErrWorkerExists, spec.JobID)
	}
	s.handles[spec.JobID] = h
	s.mu.Unlock()

	if err := s.gate.Acquire(ctx, h.cancelCh); err != nil {
		if errors.Is(err, errAborted) {
			// Cancelled while gated: no process ever existed. Record the
			// outcome so Await reports it.
			h.finish(nil, fmt.Errorf("%w: cancelled before start", interfaces.ErrWorkerCancelled))
			return nil
		}
		s.removeHandle(spec.JobID)
		h.finish(nil, err)
		return fmt.Errorf("%w: admission wait aborted: %v", interfaces.ErrWorkerCancelled, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		s.gate.Release()
		s.removeHandle(spec.JobID)
		h.finish(nil, err)
		return fmt.Errorf("%w: spawning worker: %v", interfaces.ErrWorkerFailed, err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.mu.Unlock()

	s.logger.Info().
		Str("job_id", spec.JobID).
		Str("kind", string(spec.Kind)).
		Int("pid", cmd.Process.Pid).
		Msg("Worker started")

	if spec.OnStarted != nil {
		spec.OnStarted()
	}

	common.SafeGo(s.logger, "worker-run-"+spec.JobID, func() {
		s.run(h, spec, cmd, stdout, &stderr)
	})
	return nil
}

// run drains the worker's output, waits for exit and records the
// classified outcome. Always releases the gate slot.
func (s *Service) run(h *handle, spec interfaces.WorkerSpec, cmd *exec.Cmd, stdout io.ReadCloser, stderr *bytes.Buffer) {
	defer s.gate.Release()

	var (
		lastResult map[string]interface{}
		readErr    error
	)
	readDone := make(chan struct{})

	common.SafeGo(s.logger, "worker-stdout-"+spec.JobID, func() {
		defer close(readDone)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			event, err := workerproto.ParseLine(scanner.Text())
			if err != nil {
				s.logger.Warn().Str("job_id", spec.JobID).Err(err).Msg("Skipping malformed worker line")
				continue
			}
			if event == nil {
				continue
			}
			switch event.Type {
			case workerproto.TypeProgress:
				if spec.Sink != nil {
					spec.Sink.Publish(models.ProgressUpdate{
						Progress: event.Progress.Progress,
						Step:     event.Progress.Step,
						Status:   event.Progress.Status,
						Sector:   event.Progress.Sector,
					})
				}
			case workerproto.TypeResult:
				lastResult = event.Result
			default:
				s.logger.Debug().Str("job_id", spec.JobID).Str("type", event.Type).Msg("Ignoring unknown worker event type")
			}
		}
		readErr = scanner.Err()
	})

	// Wait must not run before the stdout reader finishes, or the pipe is
	// torn down under it.
	var waitErr error
	exited := make(chan struct{})
	common.SafeGo(s.logger, "worker-wait-"+spec.JobID, func() {
		<-readDone
		waitErr = cmd.Wait()
		close(exited)
	})

	var deadline <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var outcome error
	select {
	case <-exited:
		outcome = classifyExit(waitErr, lastResult, readErr, stderr, h)

	case <-deadline:
		s.logger.Warn().Str("job_id", spec.JobID).Str("timeout", spec.Timeout.String()).Msg("Worker deadline elapsed")
		s.terminate(cmd, exited)
		s.awaitExit(exited, stdout)
		outcome = fmt.Errorf("%w: deadline of %s exceeded", interfaces.ErrWorkerTimeout, spec.Timeout)

	case <-h.cancelCh:
		s.logger.Info().Str("job_id", spec.JobID).Msg("Worker cancellation requested")
		s.terminate(cmd, exited)
		s.awaitExit(exited, stdout)
		outcome = fmt.Errorf("%w: job cancelled", interfaces.ErrWorkerCancelled)
	}

	if outcome != nil {
		h.finish(nil, outcome)
		s.logger.Info().Str("job_id", spec.JobID).Err(outcome).Msg("Worker finished")
		return
	}
	h.finish(lastResult, nil)
	s.logger.Info().Str("job_id", spec.JobID).Msg("Worker completed")
}

// classifyExit maps a natural process exit to an outcome. nil means
// completed with the retained result.
func classifyExit(waitErr error, result map[string]interface{}, readErr error, stderr *bytes.Buffer, h *handle) error {
	// A cancel that raced a natural exit still reads as cancelled.
	select {
	case <-h.cancelCh:
		return fmt.Errorf("%w: job cancelled", interfaces.ErrWorkerCancelled)
	default:
	}

	if waitErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = waitErr.Error()
		}
		return fmt.Errorf("%w: %s", interfaces.ErrWorkerFailed, detail)
	}
	if readErr != nil {
		return fmt.Errorf("%w: reading worker output: %v", interfaces.ErrWorkerFailed, readErr)
	}
	if result == nil {
		return fmt.Errorf("%w: worker produced no result", interfaces.ErrWorkerFailed)
	}
	return nil
}

// awaitExit waits for the process to be reaped. A surviving grandchild
// can hold the stdout pipe open after the child is dead; closing the pipe
// unblocks the reader so Wait can run.
func (s *Service) awaitExit(exited <-chan struct{}, stdout io.ReadCloser) {
	select {
	case <-exited:
	case <-time.After(s.grace):
		_ = stdout.Close()
		<-exited
	}
}

// terminate asks the process to exit gracefully, then kills it if it is
// still alive after the grace period.
func (s *Service) terminate(cmd *exec.Cmd, exited <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		// Likely already gone; exit will be observed shortly.
		return
	}

	select {
	case <-exited:
	case <-time.After(s.grace):
		_ = cmd.Process.Kill()
	}
}

// Await blocks until the job's worker reaches a terminal state, removes
// the handle and returns the recorded outcome.
func (s *Service) Await(jobID string) (map[string]interface{}, error) {
	s.mu.Lock()
	h, ok := s.handles[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrWorkerUnknown, jobID)
	}

	<-h.done
	s.removeHandle(jobID)
	return h.result, h.err
}

// Cancel signals the worker to terminate. Returns false for unknown or
// already terminated jobs; repeated calls on a live job return true.
func (s *Service) Cancel(jobID string) bool {
	s.mu.Lock()
	h, ok := s.handles[jobID]
	s.mu.Unlock()
	if !ok || h.terminated() {
		return false
	}

	h.signalCancel()
	return true
}

// Running returns the number of live worker handles
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, h := range s.handles {
		if !h.terminated() {
			count++
		}
	}
	return count
}

// Shutdown cancels all live workers and waits for them to terminate or
// the context to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	live := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		live = append(live, h)
	}
	s.mu.Unlock()

	for _, h := range live {
		h.signalCancel()
	}
	for _, h := range live {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) removeHandle(jobID string) {
	s.mu.Lock()
	delete(s.handles, jobID)
	s.mu.Unlock()
}

// Ensure Service implements WorkerSupervisor interface
var _ interfaces.WorkerSupervisor = (*Service)(nil)
