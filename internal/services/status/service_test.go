package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
	"github.com/ternarybob/fulmen/internal/services/events"
	"github.com/ternarybob/fulmen/internal/services/registry"
)

func TestServiceStartsInStartingState(t *testing.T) {
	svc := NewService(nil, nil, nil, arbor.NewLogger())
	assert.Equal(t, interfaces.StateStarting, svc.GetState())
}

func TestSetStateAnnouncesOnStatusRoom(t *testing.T) {
	bus := events.NewService(8, arbor.NewLogger())
	t.Cleanup(func() { _ = bus.Close() })

	svc := NewService(nil, nil, bus, arbor.NewLogger())

	session := bus.OpenSession("status-test")
	session.Join(StatusRoom)

	svc.SetState(interfaces.StateReady, "accepting requests")

	event := <-session.Events()
	require.Equal(t, StatusRoom, event.Room)
	assert.Equal(t, interfaces.EventStatus, event.Type)
	assert.Equal(t, "ready", event.Payload["state"])
	assert.Equal(t, "accepting requests", event.Payload["detail"])

	assert.Equal(t, interfaces.StateReady, svc.GetState())
}

func TestGetStatusAggregatesRegistryCounts(t *testing.T) {
	reg := registry.NewService(arbor.NewLogger())
	running := reg.Create(models.JobKindForecast, nil)
	reg.TransitionRunning(running.ID)
	reg.Create(models.JobKindProfile, nil)

	svc := NewService(reg, nil, nil, arbor.NewLogger())
	svc.SetMetadata("build", "test")

	status := svc.GetStatus()

	assert.Equal(t, "starting", status["state"])
	assert.NotContains(t, status, "running_workers", "no supervisor wired")

	jobs, ok := status["jobs"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 1, jobs[string(models.JobStatusRunning)])
	assert.Equal(t, 1, jobs[string(models.JobStatusQueued)])

	metadata, ok := status["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test", metadata["build"])
}

func TestGetStatusIncludesDetailOnlyWhenSet(t *testing.T) {
	svc := NewService(nil, nil, nil, arbor.NewLogger())

	assert.NotContains(t, svc.GetStatus(), "detail")

	svc.SetState(interfaces.StateDraining, "shutting down")
	assert.Equal(t, "shutting down", svc.GetStatus()["detail"])
}
