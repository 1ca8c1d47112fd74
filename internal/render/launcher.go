// -----------------------------------------------------------------------
// Process Launcher - Builds and starts one worker process per device
// -----------------------------------------------------------------------

package render

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/models"
)

// Launcher builds render invocations and starts worker processes.
// Stateless across calls; working directory and environment are inherited
// from the service, not set per worker.
type Launcher struct {
	config *common.RenderConfig
	logger arbor.ILogger
}

// NewLauncher creates a new process launcher
func NewLauncher(config *common.RenderConfig, logger arbor.ILogger) *Launcher {
	return &Launcher{
		config: config,
		logger: logger,
	}
}

// Launch starts one render process for the given device and frame subset
// and begins monitoring it. Non-blocking: the returned worker is already
// Running (the monitor goroutine owns it from here). A start failure is
// terminal for this worker only and never blocks sibling launches.
func (l *Launcher) Launch(jobID string, device models.Device, frames models.FrameSet, job *models.RenderJob, events chan<- models.WorkerTransition) (*Worker, error) {
	if frames.IsEmpty() {
		return nil, fmt.Errorf("no frames assigned to device %s", device.ID)
	}

	args := buildArgs(job, device, frames, l.config.ExtraArgs)
	cmd := exec.Command(l.config.Executable, args...)

	// Single combined stream keeps stdout/stderr ordering intact for the log
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	worker := &Worker{
		jobID:  jobID,
		device: device,
		frames: frames,
		cmd:    cmd,
		logger: l.logger,
		status: models.WorkerPending,
	}

	logFile, err := l.openLogFile(jobID, device)
	if err != nil {
		l.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Worker log file unavailable, keeping in-memory log only")
	}

	l.logger.Info().
		Str("job_id", jobID).
		Str("device_id", device.ID).
		Str("backend", string(device.Backend)).
		Str("frames", frames.String()).
		Str("executable", l.config.Executable).
		Msg("Launching render process")

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("launch failure on device %s: %w", device.ID, err)
	}

	worker.markRunning()

	// The waiter closes the write end on exit so the monitor's scanner
	// sees EOF; the exit error travels over the channel
	waitCh := make(chan error, 1)
	common.SafeGo(l.logger, "render-wait-"+device.ID, func() {
		err := cmd.Wait()
		pw.Close()
		waitCh <- err
	})
	common.SafeGo(l.logger, "render-monitor-"+device.ID, func() {
		worker.monitor(pr, logFile, events, waitCh)
	})

	return worker, nil
}

func (l *Launcher) openLogFile(jobID string, device models.Device) (*os.File, error) {
	if l.config.LogDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(l.config.LogDir, 0755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_%s.log", jobID, device.ID)
	return os.OpenFile(filepath.Join(l.config.LogDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
