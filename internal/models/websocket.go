// -----------------------------------------------------------------------
// WebSocket Protocol - Client commands and server event envelopes
// -----------------------------------------------------------------------

package models

import "time"

// WebSocket client operations
const (
	WSOpJoin  = "join"
	WSOpLeave = "leave"
)

// ClientCommand is the message a client sends over the realtime channel
// to manage its room memberships.
type ClientCommand struct {
	Op   string `json:"op"`
	Room string `json:"room"`
}

// EventEnvelope is the message the server pushes to subscribed clients
type EventEnvelope struct {
	Room    string                 `json:"room"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Ts      time.Time              `json:"ts"`
}

// WSLogEntry is one operational log line streamed to the logs room
type WSLogEntry struct {
	Timestamp string `json:"timestamp"` // formatted as 15:04:05
	Level     string `json:"level"`
	Message   string `json:"message"`
}
