package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

func newTestHub(t *testing.T, capacity int) *Service {
	t.Helper()
	s := NewService(capacity, arbor.NewLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func collectEvents(ch <-chan interfaces.Event, n int, timeout time.Duration) []interfaces.Event {
	var events []interfaces.Event
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestPublishReachesJoinedSession(t *testing.T) {
	hub := newTestHub(t, 16)

	sess := hub.OpenSession("client-1")
	sess.Join("forecast-job-abc")

	hub.Publish("forecast-job-abc", interfaces.EventProgress, map[string]interface{}{"progress": 50})

	events := collectEvents(sess.Events(), 1, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, interfaces.EventProgress, events[0].Type)
	assert.Equal(t, "forecast-job-abc", events[0].Room)
	assert.Equal(t, 50, events[0].Payload["progress"])
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublishToEmptyRoomIsSilentlyDropped(t *testing.T) {
	hub := newTestHub(t, 16)

	// no subscribers anywhere; must not panic or block
	hub.Publish("pypsa-job-nobody", interfaces.EventCompleted, nil)
	assert.Equal(t, 0, hub.SubscriberCount("pypsa-job-nobody"))
}

func TestRoomIsolation(t *testing.T) {
	hub := newTestHub(t, 16)

	a := hub.OpenSession("a")
	a.Join("forecast-job-1")
	b := hub.OpenSession("b")
	b.Join("forecast-job-2")

	hub.Publish("forecast-job-1", interfaces.EventStatus, map[string]interface{}{"status": "running"})

	gotA := collectEvents(a.Events(), 1, time.Second)
	require.Len(t, gotA, 1)

	gotB := collectEvents(b.Events(), 1, 100*time.Millisecond)
	assert.Empty(t, gotB, "sessions must only see events for rooms they joined")
}

func TestPerRoomOrderingPreserved(t *testing.T) {
	hub := newTestHub(t, 64)

	sess := hub.OpenSession("ordered")
	sess.Join("profile-job-1")

	for i := 0; i < 10; i++ {
		hub.Publish("profile-job-1", interfaces.EventProgress, map[string]interface{}{"seq": i})
	}

	events := collectEvents(sess.Events(), 10, time.Second)
	require.Len(t, events, 10)
	for i, ev := range events {
		assert.Equal(t, i, ev.Payload["seq"])
	}
}

func TestJoinLeaveIdempotent(t *testing.T) {
	hub := newTestHub(t, 16)

	sess := hub.OpenSession("c")
	sess.Join("room")
	sess.Join("room")
	assert.Equal(t, 1, hub.SubscriberCount("room"))

	sess.Leave("room")
	sess.Leave("room")
	assert.Equal(t, 0, hub.SubscriberCount("room"))

	hub.Publish("room", interfaces.EventLog, nil)
	events := collectEvents(sess.Events(), 1, 100*time.Millisecond)
	assert.Empty(t, events)
}

func TestOverflowDropsOldestNonTerminal(t *testing.T) {
	hub := newTestHub(t, 3)

	sess := hub.OpenSession("slow").(*session)
	sess.Join("forecast-job-x")

	// Fill the queue beyond capacity without draining. The pump holds one
	// event in flight; everything else sits in the queue.
	for i := 0; i < 10; i++ {
		hub.Publish("forecast-job-x", interfaces.EventProgress, map[string]interface{}{"seq": i})
	}
	hub.Publish("forecast-job-x", interfaces.EventCompleted, map[string]interface{}{"seq": 10})

	// Drain everything that survived.
	events := collectEvents(sess.Events(), 11, 500*time.Millisecond)
	require.NotEmpty(t, events)
	assert.Less(t, len(events), 11, "overflow must have dropped older progress events")

	last := events[len(events)-1]
	assert.Equal(t, interfaces.EventCompleted, last.Type, "terminal event must survive overflow")

	// Surviving progress events stay in publication order.
	prev := -1
	for _, ev := range events {
		seq := ev.Payload["seq"].(int)
		assert.Greater(t, seq, prev)
		prev = seq
	}
}

func TestTerminalEventsNeverDropped(t *testing.T) {
	hub := newTestHub(t, 2)

	sess := hub.OpenSession("slow").(*session)
	sess.Join("room")

	hub.Publish("room", interfaces.EventCompleted, map[string]interface{}{"id": "a"})
	hub.Publish("room", interfaces.EventCancelled, map[string]interface{}{"id": "b"})
	hub.Publish("room", interfaces.EventError, map[string]interface{}{"id": "c"})
	hub.Publish("room", interfaces.EventError, map[string]interface{}{"id": "d"})

	events := collectEvents(sess.Events(), 4, time.Second)
	require.Len(t, events, 4, "queue may exceed capacity when all events are terminal")
}

func TestCloseSessionClosesChannelAndLeavesRooms(t *testing.T) {
	hub := newTestHub(t, 16)

	sess := hub.OpenSession("d")
	sess.Join("room")
	require.Equal(t, 1, hub.SubscriberCount("room"))

	hub.CloseSession("d")
	assert.Equal(t, 0, hub.SubscriberCount("room"))

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok, "events channel must close with the session")
	case <-time.After(time.Second):
		t.Fatal("events channel did not close")
	}

	// Publishing after close is a no-op.
	hub.Publish("room", interfaces.EventStatus, nil)
}

func TestCloseSessionUnknownIDIgnored(t *testing.T) {
	hub := newTestHub(t, 16)
	hub.CloseSession("never-opened")
}

func TestReopeningSessionReplacesOld(t *testing.T) {
	hub := newTestHub(t, 16)

	first := hub.OpenSession("dup")
	first.Join("room")
	second := hub.OpenSession("dup")
	second.Join("room")

	assert.Equal(t, 1, hub.SubscriberCount("room"))

	select {
	case _, ok := <-first.Events():
		assert.False(t, ok, "replaced session must be closed")
	case <-time.After(time.Second):
		t.Fatal("replaced session channel did not close")
	}
}

func TestHubCloseTearsDownAllSessions(t *testing.T) {
	hub := NewService(16, arbor.NewLogger())

	a := hub.OpenSession("a")
	b := hub.OpenSession("b")
	require.NoError(t, hub.Close())

	for _, sess := range []interfaces.EventSession{a, b} {
		select {
		case _, ok := <-sess.Events():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("session channel did not close on hub close")
		}
	}

	assert.NoError(t, hub.Close(), "second close is a no-op")
}
