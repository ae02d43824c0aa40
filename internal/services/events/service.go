// Package events is the in-process publish/subscribe hub that fans job
// lifecycle events out to client sessions grouped by room. Publishing is
// fire-and-forget: each session owns a bounded queue and a pump goroutine,
// so a stalled WebSocket can never block a worker goroutine.
package events

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

const defaultQueueCapacity = 64

// Service implements the event hub over mutex-guarded room maps. Lock
// ordering: service lock before session lock, never the reverse.
type Service struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*session // room -> session id -> session
	sessions map[string]*session
	capacity int
	closed   bool
	logger   arbor.ILogger
}

// NewService creates an event hub. queueCapacity bounds each session's
// outbound queue; values below one fall back to the default.
func NewService(queueCapacity int, logger arbor.ILogger) *Service {
	if queueCapacity < 1 {
		queueCapacity = defaultQueueCapacity
	}
	return &Service{
		rooms:    make(map[string]map[string]*session),
		sessions: make(map[string]*session),
		capacity: queueCapacity,
		logger:   logger,
	}
}

// Publish delivers an event to every session currently in the room. The
// service lock serializes publications so every subscriber observes the
// same per-room order.
func (s *Service) Publish(room string, eventType interfaces.EventType, payload map[string]interface{}) {
	event := interfaces.Event{
		Room:      room,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for _, sess := range s.rooms[room] {
		sess.enqueue(event)
	}
}

// OpenSession registers a new client session. An existing session with the
// same id is closed and replaced.
func (s *Service) OpenSession(sessionID string) interfaces.EventSession {
	s.mu.Lock()
	old := s.sessions[sessionID]

	sess := newSession(sessionID, s.capacity, s)
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	common.SafeGo(s.logger, "event-session-pump-"+sessionID, func() {
		sess.pump()
	})

	s.logger.Debug().Str("session_id", sessionID).Msg("Event session opened")
	return sess
}

// CloseSession closes the session with the given id. Unknown ids are
// ignored.
func (s *Service) CloseSession(sessionID string) {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()

	if sess != nil {
		sess.Close()
	}
}

// SubscriberCount returns the number of sessions currently in a room
func (s *Service) SubscriberCount(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// Close tears down all sessions
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}
	return nil
}

// join subscribes a session to a room. Called by the session.
func (s *Service) join(sess *session, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[string]*session)
		s.rooms[room] = members
	}
	members[sess.id] = sess
}

// leave unsubscribes a session from a room. Empty rooms are removed so the
// map does not accumulate names of finished jobs.
func (s *Service) leave(sess *session, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[room]
	if !ok {
		return
	}
	delete(members, sess.id)
	if len(members) == 0 {
		delete(s.rooms, room)
	}
}

// drop removes a closing session from the registry and all rooms
func (s *Service) drop(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
	for room, members := range s.rooms {
		if members[sess.id] == sess {
			delete(members, sess.id)
			if len(members) == 0 {
				delete(s.rooms, room)
			}
		}
	}
}

// Ensure Service implements EventService interface
var _ interfaces.EventService = (*Service)(nil)
