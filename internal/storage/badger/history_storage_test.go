package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "fornax-test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func entryAt(jobID string, created time.Time) *models.HistoryEntry {
	return &models.HistoryEntry{
		JobID:     jobID,
		SceneFile: "shot.blend",
		Mode:      models.ModeAnimation,
		Strategy:  string(models.StrategySplit),
		Frames:    "1-100",
		Devices:   []string{"GPU0"},
		Status:    models.JobRunning,
		CreatedAt: created,
	}
}

func TestHistorySaveAndListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStorage(db, 20, common.GetLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, entryAt("job_a", base)))
	require.NoError(t, store.Save(ctx, entryAt("job_b", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, entryAt("job_c", base.Add(2*time.Minute))))

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "job_c", entries[0].JobID)
	assert.Equal(t, "job_a", entries[2].JobID)
}

func TestHistoryBoundedBySaveLimit(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStorage(db, 3, common.GetLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"job_1", "job_2", "job_3", "job_4", "job_5"} {
		require.NoError(t, store.Save(ctx, entryAt(id, base.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "job_5", entries[0].JobID)
	assert.Equal(t, "job_3", entries[2].JobID)
}

func TestHistorySetOutcome(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStorage(db, 20, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, entryAt("job_done", time.Now())))

	finished := time.Now()
	require.NoError(t, store.SetOutcome(ctx, "job_done", models.JobCompleted, finished))

	entries, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.JobCompleted, entries[0].Status)
	require.NotNil(t, entries[0].FinishedAt)

	err = store.SetOutcome(ctx, "job_missing", models.JobFailed, finished)
	assert.Error(t, err)
}
