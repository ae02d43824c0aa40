package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
	"github.com/ternarybob/fulmen/internal/services/events"
)

func newWSFixture(t *testing.T) (*events.Service, *websocket.Conn) {
	t.Helper()
	bus := events.NewService(16, arbor.NewLogger())
	handler := NewWebSocketHandler(bus, arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	t.Cleanup(func() { _ = bus.Close() })

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return bus, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.EventEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope models.EventEnvelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func TestWebSocketJoinReceivesRoomEvents(t *testing.T) {
	bus, conn := newWSFixture(t)

	room := models.JobKindForecast.Room("job-1")
	require.NoError(t, conn.WriteJSON(models.ClientCommand{Op: models.WSOpJoin, Room: room}))

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(room) == 1
	}, 2*time.Second, 5*time.Millisecond)

	bus.Publish(room, interfaces.EventProgress, map[string]interface{}{"progress": 40})

	envelope := readEnvelope(t, conn)
	assert.Equal(t, room, envelope.Room)
	assert.Equal(t, string(interfaces.EventProgress), envelope.Type)
	assert.Equal(t, float64(40), envelope.Payload["progress"])
	assert.False(t, envelope.Ts.IsZero())
}

func TestWebSocketLeaveStopsDelivery(t *testing.T) {
	bus, conn := newWSFixture(t)

	room := "pypsa-job-7"
	require.NoError(t, conn.WriteJSON(models.ClientCommand{Op: models.WSOpJoin, Room: room}))
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(room) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Op: models.WSOpLeave, Room: room}))
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(room) == 0
	}, 2*time.Second, 5*time.Millisecond)

	bus.Publish(room, interfaces.EventProgress, map[string]interface{}{"progress": 99})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var envelope models.EventEnvelope
	assert.Error(t, conn.ReadJSON(&envelope), "no event expected after leave")
}

func TestWebSocketUnknownCommandIgnored(t *testing.T) {
	bus, conn := newWSFixture(t)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Op: "subscribe", Room: "x"}))
	require.NoError(t, conn.WriteJSON(models.ClientCommand{Op: models.WSOpJoin, Room: "x"}))

	require.Eventually(t, func() bool {
		return bus.SubscriberCount("x") == 1
	}, 2*time.Second, 5*time.Millisecond, "connection must survive unknown commands")
}

func TestWebSocketDisconnectClosesSession(t *testing.T) {
	bus, conn := newWSFixture(t)

	room := "forecast-job-2"
	require.NoError(t, conn.WriteJSON(models.ClientCommand{Op: models.WSOpJoin, Room: room}))
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(room) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(room) == 0
	}, 2*time.Second, 5*time.Millisecond, "server must drop the session on disconnect")
}
