package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// shellManifest maps every job kind to a /bin/sh script so tests control
// the worker's exact behaviour.
func shellManifest(script string) *Manifest {
	cmd := Command{Command: "/bin/sh", Args: []string{"-c", script}}
	return &Manifest{Workers: map[string]Command{
		string(models.JobKindForecast): cmd,
		string(models.JobKindProfile):  cmd,
		string(models.JobKindPypsa):    cmd,
	}}
}

func newTestSupervisor(t *testing.T, capacity int, script string) *Service {
	t.Helper()
	s := NewService(Options{
		Cap:         capacity,
		GracePeriod: 200 * time.Millisecond,
		Manifest:    shellManifest(script),
	}, arbor.NewLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// recordingSink collects progress updates in arrival order
type recordingSink struct {
	mu      sync.Mutex
	updates []models.ProgressUpdate
}

func (r *recordingSink) Publish(update models.ProgressUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, update)
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() []models.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ProgressUpdate(nil), r.updates...)
}

func TestWorkerHappyPath(t *testing.T) {
	script := `
echo '{"type":"progress","progress":10,"step":"load"}'
echo '{"type":"progress","progress":60,"step":"fit","sector":"residential"}'
echo 'this line is not json'
echo '{"type":"heartbeat"}'
echo '{"type":"result","scenario":"base","mape":3.2}'
`
	s := newTestSupervisor(t, 2, script)

	sink := &recordingSink{}
	started := false
	err := s.Start(context.Background(), interfaces.WorkerSpec{
		JobID:     "job-1",
		Kind:      models.JobKindForecast,
		Config:    map[string]interface{}{"scenario_name": "base"},
		Timeout:   5 * time.Second,
		Sink:      sink,
		OnStarted: func() { started = true },
	})
	require.NoError(t, err)
	assert.True(t, started, "OnStarted must fire once the process spawns")

	result, err := s.Await("job-1")
	require.NoError(t, err)
	assert.Equal(t, "base", result["scenario"])
	assert.Equal(t, 3.2, result["mape"])
	assert.NotContains(t, result, "type", "result tag must be stripped")

	updates := sink.snapshot()
	require.Len(t, updates, 2, "malformed and unknown lines must be skipped")
	assert.Equal(t, 10, updates[0].Progress)
	assert.Equal(t, "load", updates[0].Step)
	assert.Equal(t, 60, updates[1].Progress)
	assert.Equal(t, "residential", updates[1].Sector)

	assert.Equal(t, 0, s.Running(), "handle must be gone after Await")
}

func TestExitZeroWithoutResultFails(t *testing.T) {
	s := newTestSupervisor(t, 1, `echo '{"type":"progress","progress":50}'`)

	require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "job-2", Kind: models.JobKindProfile, Timeout: 5 * time.Second,
	}))

	_, err := s.Await("job-2")
	require.ErrorIs(t, err, interfaces.ErrWorkerFailed)
	assert.Contains(t, err.Error(), "no result")
}

func TestNonZeroExitReportsStderr(t *testing.T) {
	s := newTestSupervisor(t, 1, `echo 'solver exploded' >&2; exit 3`)

	require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "job-3", Kind: models.JobKindPypsa, Timeout: 5 * time.Second,
	}))

	_, err := s.Await("job-3")
	require.ErrorIs(t, err, interfaces.ErrWorkerFailed)
	assert.Contains(t, err.Error(), "solver exploded")
}

func TestDeadlineKillsWorker(t *testing.T) {
	s := newTestSupervisor(t, 1, `exec sleep 30`)

	require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "job-4", Kind: models.JobKindForecast, Timeout: 150 * time.Millisecond,
	}))

	begin := time.Now()
	_, err := s.Await("job-4")
	require.ErrorIs(t, err, interfaces.ErrWorkerTimeout)
	assert.Less(t, time.Since(begin), 5*time.Second, "worker must be reaped promptly after the deadline")
}

func TestCancelRunningWorker(t *testing.T) {
	s := newTestSupervisor(t, 1, `exec sleep 30`)

	require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "job-5", Kind: models.JobKindForecast, Timeout: time.Minute,
	}))

	assert.True(t, s.Cancel("job-5"))
	assert.True(t, s.Cancel("job-5"), "repeat cancel of a live job is idempotent")

	_, err := s.Await("job-5")
	require.ErrorIs(t, err, interfaces.ErrWorkerCancelled)

	assert.False(t, s.Cancel("job-5"), "terminated job reads as not cancellable")
	assert.False(t, s.Cancel("never-started"))
}

func TestDuplicateJobIDRejected(t *testing.T) {
	s := newTestSupervisor(t, 2, `exec sleep 30`)

	require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "dup", Kind: models.JobKindForecast, Timeout: time.Minute,
	}))
	err := s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "dup", Kind: models.JobKindForecast, Timeout: time.Minute,
	})
	require.ErrorIs(t, err, interfaces.ErrWorkerExists)

	s.Cancel("dup")
	_, _ = s.Await("dup")
}

func TestMissingExecutableFailsSynchronously(t *testing.T) {
	s := NewService(Options{
		Cap: 1,
		Manifest: &Manifest{Workers: map[string]Command{
			string(models.JobKindForecast): {Command: "no-such-worker-binary-xyz"},
		}},
	}, arbor.NewLogger())

	err := s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "job-6", Kind: models.JobKindForecast,
	})
	require.ErrorIs(t, err, interfaces.ErrWorkerFailed)

	_, err = s.Await("job-6")
	assert.ErrorIs(t, err, interfaces.ErrWorkerUnknown, "no handle may remain after a spawn failure")
}

func TestUnknownKindFailsSynchronously(t *testing.T) {
	s := NewService(Options{Cap: 1, Manifest: &Manifest{Workers: map[string]Command{}}}, arbor.NewLogger())

	err := s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "job-7", Kind: models.JobKindForecast,
	})
	assert.ErrorIs(t, err, interfaces.ErrWorkerFailed)
}

func TestGatedJobCancelledBeforeSpawn(t *testing.T) {
	s := newTestSupervisor(t, 1, `exec sleep 30`)

	require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
		JobID: "holder", Kind: models.JobKindForecast, Timeout: time.Minute,
	}))

	startReturned := make(chan error, 1)
	go func() {
		startReturned <- s.Start(context.Background(), interfaces.WorkerSpec{
			JobID: "gated", Kind: models.JobKindForecast, Timeout: time.Minute,
			OnStarted: func() { t.Error("gated job must never report started") },
		})
	}()

	// Give the second Start time to queue on the gate.
	assert.Eventually(t, func() bool { return s.Cancel("gated") }, time.Second, 10*time.Millisecond)

	require.NoError(t, <-startReturned)
	_, err := s.Await("gated")
	require.ErrorIs(t, err, interfaces.ErrWorkerCancelled)

	s.Cancel("holder")
	_, _ = s.Await("holder")
}

func TestAdmissionGateLimitsConcurrency(t *testing.T) {
	script := `
echo '{"type":"result","ok":true}'
exec sleep 0.2
`
	s := newTestSupervisor(t, 1, script)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			if err := s.Start(context.Background(), interfaces.WorkerSpec{
				JobID: jobID, Kind: models.JobKindForecast, Timeout: 10 * time.Second,
			}); err != nil {
				t.Errorf("start %s: %v", jobID, err)
				return
			}
			if _, err := s.Await(jobID); err != nil {
				t.Errorf("await %s: %v", jobID, err)
			}
		}(id)
		time.Sleep(20 * time.Millisecond)
	}

	assert.LessOrEqual(t, s.Running(), 1, "cap of one allows at most one live worker")
	wg.Wait()
	assert.Equal(t, 0, s.Running())
}

func TestShutdownReapsAllWorkers(t *testing.T) {
	s := newTestSupervisor(t, 4, `exec sleep 30`)

	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, s.Start(context.Background(), interfaces.WorkerSpec{
			JobID: id, Kind: models.JobKindForecast, Timeout: time.Minute,
		}))
	}
	require.Equal(t, 3, s.Running())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, 0, s.Running())
}
