package interfaces

import "time"

// EventType represents the kind of a realtime room event
type EventType string

const (
	EventStatus    EventType = "status"
	EventProgress  EventType = "progress"
	EventLog       EventType = "log"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
	EventError     EventType = "error"
)

// IsTerminal reports whether the event type marks the end of a job.
// Terminal events are never dropped by queue overflow.
func (t EventType) IsTerminal() bool {
	return t == EventCompleted || t == EventCancelled || t == EventError
}

// Event is one message published to a room
type Event struct {
	Room      string                 `json:"room"`
	Type      EventType              `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventSession is one client's view of the bus: a bounded outbound queue
// plus room membership. Sessions are created by EventService.OpenSession
// and must be closed by the owner.
type EventSession interface {
	// ID returns the session identifier
	ID() string

	// Join subscribes the session to a room. Idempotent.
	Join(room string)

	// Leave unsubscribes the session from a room. Idempotent.
	Leave(room string)

	// Events returns the outbound queue. The channel is closed when the
	// session closes; events targeting a closed session are discarded.
	Events() <-chan Event

	// Close removes the session from all rooms and drains its queue
	Close()
}

// EventService is the publish/subscribe hub fanning job events to client
// sessions grouped by room. Publishing never blocks the caller: each
// subscriber has a bounded queue, and on overflow the oldest non-terminal
// event is dropped while terminal events are always retained.
type EventService interface {
	// Publish delivers an event to every session currently in the room,
	// in publication order per room
	Publish(room string, eventType EventType, payload map[string]interface{})

	// OpenSession registers a new client session with a bounded queue
	OpenSession(sessionID string) EventSession

	// CloseSession closes the session with the given id. Unknown ids are
	// ignored.
	CloseSession(sessionID string)

	// SubscriberCount returns the number of sessions currently in a room
	SubscriberCount(room string) int

	// Close tears down all sessions
	Close() error
}
