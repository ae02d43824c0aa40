package events

import (
	"sync"

	"github.com/ternarybob/fulmen/internal/interfaces"
)

// session is one subscriber's view of the hub. Events land in a bounded
// in-memory queue; a dedicated pump goroutine moves them to the outbound
// channel so enqueueing never blocks a publisher.
//
// Overflow policy: when the queue is full the oldest non-terminal event is
// dropped. Terminal events are never dropped, so the queue may exceed its
// capacity while it holds only terminal events.
type session struct {
	id       string
	svc      *Service
	capacity int

	mu     sync.Mutex
	queue  []interfaces.Event
	closed bool

	notify chan struct{}
	done   chan struct{}
	out    chan interfaces.Event

	closeOnce sync.Once
}

func newSession(id string, capacity int, svc *Service) *session {
	return &session{
		id:       id,
		svc:      svc,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		out:      make(chan interfaces.Event),
	}
}

// ID returns the session identifier
func (s *session) ID() string { return s.id }

// Join subscribes the session to a room. Idempotent.
func (s *session) Join(room string) {
	s.svc.join(s, room)
}

// Leave unsubscribes the session from a room. Idempotent.
func (s *session) Leave(room string) {
	s.svc.leave(s, room)
}

// Events returns the outbound queue channel. Closed when the session
// closes.
func (s *session) Events() <-chan interfaces.Event {
	return s.out
}

// Close removes the session from all rooms, stops the pump and closes the
// outbound channel. Safe to call more than once.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		s.svc.drop(s)

		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
	})
}

// enqueue appends an event to the queue, applying the overflow policy.
// Events targeting a closed session are discarded.
func (s *session) enqueue(event interfaces.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if len(s.queue) >= s.capacity {
		if i := firstNonTerminal(s.queue); i >= 0 {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
		}
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump is the single sender on out. It runs until Close and then closes
// the channel, which is the subscriber's end-of-stream signal.
func (s *session) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
		case <-s.done:
			return
		}
	}
}

func firstNonTerminal(queue []interfaces.Event) int {
	for i, event := range queue {
		if !event.Type.IsTerminal() {
			return i
		}
	}
	return -1
}

// Ensure session implements EventSession interface
var _ interfaces.EventSession = (*session)(nil)
