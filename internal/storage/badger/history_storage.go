package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fornax/internal/interfaces"
	"github.com/ternarybob/fornax/internal/models"
)

// HistoryStorage implements the HistoryStorage interface for Badger.
// The render history is bounded: Save prunes anything beyond the
// configured limit, oldest entries first.
type HistoryStorage struct {
	db     *BadgerDB
	limit  int
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, limit int, logger arbor.ILogger) interfaces.HistoryStorage {
	if limit <= 0 {
		limit = 20
	}
	return &HistoryStorage{
		db:     db,
		limit:  limit,
		logger: logger,
	}
}

// Save records one submitted job and prunes the history to its bound
func (s *HistoryStorage) Save(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.JobID == "" {
		return fmt.Errorf("history entry job ID is required")
	}

	if err := s.db.Store().Upsert(entry.JobID, entry); err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}

	return s.Prune(ctx, s.limit)
}

// SetOutcome updates the terminal status of a recorded job
func (s *HistoryStorage) SetOutcome(ctx context.Context, jobID string, status models.JobStatus, finishedAt time.Time) error {
	var entry models.HistoryEntry
	if err := s.db.Store().Get(jobID, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("history entry not found: %s", jobID)
		}
		return fmt.Errorf("failed to get history entry: %w", err)
	}

	entry.Status = status
	entry.FinishedAt = &finishedAt

	if err := s.db.Store().Upsert(jobID, &entry); err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}
	return nil
}

// List returns history entries newest first, up to limit (0 = all kept)
func (s *HistoryStorage) List(ctx context.Context, limit int) ([]*models.HistoryEntry, error) {
	var entries []*models.HistoryEntry
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Prune removes the oldest entries beyond keep
func (s *HistoryStorage) Prune(ctx context.Context, keep int) error {
	entries, err := s.List(ctx, 0)
	if err != nil {
		return err
	}
	if keep <= 0 || len(entries) <= keep {
		return nil
	}

	for _, stale := range entries[keep:] {
		if err := s.db.Store().Delete(stale.JobID, &models.HistoryEntry{}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", stale.JobID).Msg("Failed to prune history entry")
		}
	}

	s.logger.Debug().
		Int("pruned", len(entries)-keep).
		Int("kept", keep).
		Msg("Render history pruned")

	return nil
}
