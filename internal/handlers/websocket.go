package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// LogsRoom receives the operational log stream
const LogsRoom = "logs"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler bridges the realtime transport to the event bus: one
// bus session per connection, room membership driven by client commands.
type WebSocketHandler struct {
	events interfaces.EventService
	logger arbor.ILogger
}

// NewWebSocketHandler creates the realtime transport handler
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		events: events,
		logger: logger,
	}
}

// HandleWebSocket handles GET /ws. The connection owns one bus session;
// closing either side tears down the other.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	sessionID := uuid.New().String()
	session := h.events.OpenSession(sessionID)

	h.logger.Debug().Str("session_id", sessionID).Msg("WebSocket client connected")

	// Writer goroutine is the sole writer on the connection. It drains the
	// session queue and exits when the session closes.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer conn.Close()

		for event := range session.Events() {
			envelope := models.EventEnvelope{
				Room:    event.Room,
				Type:    string(event.Type),
				Payload: event.Payload,
				Ts:      event.Timestamp,
			}
			if err := conn.WriteJSON(envelope); err != nil {
				h.logger.Debug().Str("session_id", sessionID).Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}()

	// Read loop handles join/leave commands until the client disconnects
	for {
		var cmd models.ClientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Str("session_id", sessionID).Err(err).Msg("WebSocket read error")
			}
			break
		}

		switch cmd.Op {
		case models.WSOpJoin:
			if cmd.Room != "" {
				session.Join(cmd.Room)
			}
		case models.WSOpLeave:
			if cmd.Room != "" {
				session.Leave(cmd.Room)
			}
		default:
			h.logger.Debug().Str("op", cmd.Op).Msg("Ignoring unknown WebSocket command")
		}
	}

	session.Close()
	<-writeDone

	h.logger.Debug().Str("session_id", sessionID).Msg("WebSocket client disconnected")
}
