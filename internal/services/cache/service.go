// Package cache provides the in-memory TTL cache shared across request
// paths. Values are isolated by codec deep copy: they are serialized on
// Set and decoded into a fresh allocation on Get, so a caller mutating a
// returned value can never corrupt stored state.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

// entry is one cached value. A zero expiresAt means the entry never
// expires.
type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Service implements the TTL cache over a mutex-guarded map. A background
// sweeper reclaims expired entries on a bounded interval; Get also purges
// on contact, so the sweep is purely memory reclamation.
type Service struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  arbor.ILogger

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewService creates a cache and starts its sweeper. A sweepInterval of
// zero or less disables the background sweep.
func NewService(sweepInterval time.Duration, logger arbor.ILogger) *Service {
	s := &Service{
		entries:   make(map[string]*entry),
		logger:    logger,
		stopSweep: make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.sweeper(sweepInterval)
	}

	return s
}

// Get returns a deep copy of the cached value, or false when the key is
// absent or expired. Expired entries are removed on contact.
func (s *Service) Get(key string) (interface{}, bool) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if e.expired(now) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// replaced the entry with a fresh one.
		if current, ok := s.entries[key]; ok && current.expired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal(e.data, &value); err != nil {
		// Should be impossible: the codec accepted the value on Set.
		s.logger.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		s.Delete(key)
		return nil, false
	}

	return value, true
}

// Set stores a deep copy of value under key. A ttl of zero or less means
// the entry never expires.
func (s *Service) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return interfaces.ErrInvalidKey
	}

	data, err := json.Marshal(value)
	if err != nil {
		return interfaces.ErrNotSerializable
	}

	e := &entry{data: data}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	return nil
}

// Delete removes the entry for key. Idempotent.
func (s *Service) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Flush removes all entries
func (s *Service) Flush() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// Keys returns the non-expired keys in unspecified order
func (s *Service) Keys() []string {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Close stops the background sweeper
func (s *Service) Close() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
	})
}

// sweeper removes expired entries on a fixed interval
func (s *Service) sweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopSweep:
			return
		}
	}
}

func (s *Service) sweep() {
	now := time.Now()

	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug().
			Int("removed", removed).
			Int("remaining", remaining).
			Msg("Cache sweep removed expired entries")
	}
}

// Ensure Service implements CacheService interface
var _ interfaces.CacheService = (*Service)(nil)
