package badger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// ArchiveStorage persists terminal job records. Records are write-once;
// SaveJob upserts by job id so a retried archive write stays idempotent.
type ArchiveStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArchiveStorage creates an archive store over an open database
func NewArchiveStorage(db *BadgerDB, logger arbor.ILogger) *ArchiveStorage {
	return &ArchiveStorage{
		db:     db,
		logger: logger,
	}
}

// SaveJob stores a terminal job record
func (s *ArchiveStorage) SaveJob(record *models.JobRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("job record requires an id")
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("saving job record %s: %w", record.ID, err)
	}

	s.logger.Debug().
		Str("job_id", record.ID).
		Str("kind", record.Kind).
		Str("status", record.Status).
		Msg("Job archived")
	return nil
}

// GetJob returns one record by job id
func (s *ArchiveStorage) GetJob(id string) (*models.JobRecord, error) {
	var record models.JobRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting job record %s: %w", id, err)
	}
	return &record, nil
}

// ListRecent returns up to limit records ordered by finish time, newest
// first.
func (s *ArchiveStorage) ListRecent(limit int) ([]*models.JobRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("FinishedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.JobRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("listing job records: %w", err)
	}
	return toPointers(records), nil
}

// ListByKind returns up to limit records of one kind, newest first
func (s *ArchiveStorage) ListByKind(kind models.JobKind, limit int) ([]*models.JobRecord, error) {
	query := badgerhold.Where("Kind").Eq(string(kind)).Index("Kind").SortBy("FinishedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.JobRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("listing %s job records: %w", kind, err)
	}
	return toPointers(records), nil
}

// DeleteOlderThan removes records finished before the cutoff and returns
// how many were deleted.
func (s *ArchiveStorage) DeleteOlderThan(cutoff time.Time) (int, error) {
	query := badgerhold.Where("FinishedAt").Lt(cutoff)

	var victims []models.JobRecord
	if err := s.db.Store().Find(&victims, query); err != nil {
		return 0, fmt.Errorf("finding expired job records: %w", err)
	}
	if len(victims) == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.JobRecord{}, query); err != nil {
		return 0, fmt.Errorf("deleting expired job records: %w", err)
	}
	return len(victims), nil
}

// Count returns the total number of archived records
func (s *ArchiveStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.JobRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("counting job records: %w", err)
	}
	return int(count), nil
}

// Close releases the underlying database
func (s *ArchiveStorage) Close() error {
	return s.db.Close()
}

func toPointers(records []models.JobRecord) []*models.JobRecord {
	out := make([]*models.JobRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}

// Ensure ArchiveStorage implements the interface
var _ interfaces.ArchiveStorage = (*ArchiveStorage)(nil)
