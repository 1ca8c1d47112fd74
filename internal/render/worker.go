// -----------------------------------------------------------------------
// Worker - One background render process bound to one device
// -----------------------------------------------------------------------

package render

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fornax/internal/models"
)

// Worker owns exactly one spawned render process: its OS handle, its
// state, and its captured output. No other component reads from or
// terminates the process directly; cancellation is routed through Cancel.
type Worker struct {
	jobID  string
	device models.Device
	frames models.FrameSet
	cmd    *exec.Cmd
	logger arbor.ILogger

	mu              sync.Mutex
	status          models.WorkerStatus
	exitCode        int
	framesDone      int
	errMsg          string
	logLines        []string
	cancelRequested bool
	startedAt       *time.Time
	finishedAt      *time.Time
}

// Device returns the device this worker is bound to
func (w *Worker) Device() models.Device {
	return w.device
}

// Frames returns the frame subset assigned to this worker
func (w *Worker) Frames() models.FrameSet {
	return w.frames
}

// Snapshot returns a point-in-time copy of the worker state, including
// the last tailLines lines of captured output. Safe to call while the
// monitor is still appending: the tail is copied under the lock.
func (w *Worker) Snapshot(tailLines int) models.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := models.WorkerState{
		JobID:      w.jobID,
		DeviceID:   w.device.ID,
		Device:     w.device,
		Frames:     w.frames.String(),
		Status:     w.status,
		ExitCode:   w.exitCode,
		FramesDone: w.framesDone,
		Error:      w.errMsg,
		StartedAt:  w.startedAt,
		FinishedAt: w.finishedAt,
	}

	if tailLines > 0 && len(w.logLines) > 0 {
		start := len(w.logLines) - tailLines
		if start < 0 {
			start = 0
		}
		state.LogTail = append([]string(nil), w.logLines[start:]...)
	}

	return state
}

// Cancel requests cooperative termination: SIGTERM now, SIGKILL after the
// grace period if the process is still alive. Idempotent; a no-op once
// the worker is terminal.
func (w *Worker) Cancel(grace time.Duration) {
	w.mu.Lock()
	if w.status.Terminal() || w.cancelRequested {
		w.mu.Unlock()
		return
	}
	w.cancelRequested = true
	process := w.cmd.Process
	w.mu.Unlock()

	if process == nil {
		return
	}

	w.logger.Info().
		Str("job_id", w.jobID).
		Str("device_id", w.device.ID).
		Dur("grace", grace).
		Msg("Requesting worker termination")

	if err := process.Signal(syscall.SIGTERM); err != nil {
		// Already exited, or the platform refused the signal; escalate
		w.logger.Debug().Err(err).Str("device_id", w.device.ID).Msg("Termination signal failed")
	}

	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		<-timer.C

		w.mu.Lock()
		terminal := w.status.Terminal()
		w.mu.Unlock()

		if !terminal {
			w.logger.Warn().
				Str("job_id", w.jobID).
				Str("device_id", w.device.ID).
				Msg("Grace period expired, killing worker process")
			_ = process.Kill()
		}
	}()
}

func (w *Worker) markRunning() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != models.WorkerPending {
		return
	}
	w.status = models.WorkerRunning
	now := time.Now()
	w.startedAt = &now
}

func (w *Worker) appendLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logLines = append(w.logLines, line)
}

func (w *Worker) incrementProgress() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.framesDone++
}

func (w *Worker) progress() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.framesDone
}

func (w *Worker) wasCancelRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelRequested
}

// markTerminal records the terminal state exactly once; returns false if
// the worker was already terminal.
func (w *Worker) markTerminal(status models.WorkerStatus, exitCode int, errMsg string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status.Terminal() {
		return false
	}
	w.status = status
	w.exitCode = exitCode
	w.errMsg = errMsg
	now := time.Now()
	w.finishedAt = &now
	return true
}
