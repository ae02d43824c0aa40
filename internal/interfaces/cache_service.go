// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"errors"
	"time"
)

// ErrInvalidKey is returned when a cache operation receives an empty key
var ErrInvalidKey = errors.New("invalid cache key")

// ErrNotSerializable is returned when a value cannot round-trip through
// the cache codec and therefore cannot be stored safely
var ErrNotSerializable = errors.New("value not serializable")

// CacheService memoizes expensive derived results keyed by deterministic
// strings. Values are isolated by codec deep copy: mutations on a value
// returned from Get never affect stored state.
type CacheService interface {
	// Get returns a deep copy of the cached value, or false when the key
	// is absent or expired. Expired entries are purged on contact.
	Get(key string) (interface{}, bool)

	// Set stores a deep copy of value under key. A ttl of zero or less
	// means the entry never expires. Empty keys fail with ErrInvalidKey;
	// values the codec rejects fail with ErrNotSerializable.
	Set(key string, value interface{}, ttl time.Duration) error

	// Delete removes the entry. Idempotent.
	Delete(key string)

	// Flush removes all entries
	Flush()

	// Keys returns the non-expired keys in unspecified order
	Keys() []string

	// Close stops the background sweeper
	Close()
}
