package orchestrator

import (
	"time"

	"github.com/ternarybob/fornax/internal/models"
	"github.com/ternarybob/fornax/internal/render"
)

// WorkerHandle is the coordinator's view of one launched render worker.
// Satisfied by render.Worker; tests substitute scripted handles.
type WorkerHandle interface {
	Device() models.Device
	Frames() models.FrameSet
	Snapshot(tailLines int) models.WorkerState
	Cancel(grace time.Duration)
}

// Launcher spawns one worker per device assignment. The returned handle
// is already running; its terminal transition arrives on the events channel.
type Launcher interface {
	Launch(jobID string, device models.Device, frames models.FrameSet, job *models.RenderJob, events chan<- models.WorkerTransition) (WorkerHandle, error)
}

// processLauncher adapts render.Launcher to the coordinator interface
type processLauncher struct {
	inner *render.Launcher
}

// NewProcessLauncher wraps the real render process launcher
func NewProcessLauncher(inner *render.Launcher) Launcher {
	return &processLauncher{inner: inner}
}

func (p *processLauncher) Launch(jobID string, device models.Device, frames models.FrameSet, job *models.RenderJob, events chan<- models.WorkerTransition) (WorkerHandle, error) {
	worker, err := p.inner.Launch(jobID, device, frames, job, events)
	if err != nil {
		return nil, err
	}
	return worker, nil
}
