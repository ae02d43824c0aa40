package interfaces

import (
	"errors"
	"time"

	"github.com/ternarybob/fulmen/internal/models"
)

// ErrRecordNotFound is returned when an archive lookup misses
var ErrRecordNotFound = errors.New("job record not found")

// ArchiveStorage persists terminal job records for history queries.
// Records are write-once: they are saved exactly when a job reaches a
// terminal state and never updated afterwards.
type ArchiveStorage interface {
	// SaveJob stores a terminal job record
	SaveJob(record *models.JobRecord) error

	// GetJob returns one record by job id
	GetJob(id string) (*models.JobRecord, error)

	// ListRecent returns up to limit records ordered by finish time,
	// newest first
	ListRecent(limit int) ([]*models.JobRecord, error)

	// ListByKind returns up to limit records of one kind, newest first
	ListByKind(kind models.JobKind, limit int) ([]*models.JobRecord, error)

	// DeleteOlderThan removes records finished before the cutoff and
	// returns how many were deleted
	DeleteOlderThan(cutoff time.Time) (int, error)

	// Count returns the total number of archived records
	Count() (int, error)

	// Close releases the underlying database
	Close() error
}
