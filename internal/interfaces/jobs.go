package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/fornax/internal/models"
)

// Orchestrator is the render job coordinator surface exposed to the
// HTTP layer. Submit returns as soon as workers are launched; everything
// else is a read or a best-effort request.
type Orchestrator interface {
	Submit(ctx context.Context, job *models.RenderJob) (string, error)
	Cancel(jobID string) error
	Status(jobID string) (*models.JobStatusReport, error)
	List() []*models.JobSummary
}

// Notifier is the desktop notification collaborator. Failures are logged
// by callers, never treated as job failure.
type Notifier interface {
	Notify(ctx context.Context, jobID string, status models.JobStatus, summary string) error
}

// PowerManager handles keep-awake during a job and sleep/shutdown
// requests after terminal state
type PowerManager interface {
	Inhibit(jobID string) error
	Release(jobID string)
	Request(action models.PowerAction) error
}

// HistoryStorage persists the bounded render history
type HistoryStorage interface {
	Save(ctx context.Context, entry *models.HistoryEntry) error
	SetOutcome(ctx context.Context, jobID string, status models.JobStatus, finishedAt time.Time) error
	List(ctx context.Context, limit int) ([]*models.HistoryEntry, error)
	Prune(ctx context.Context, keep int) error
}
