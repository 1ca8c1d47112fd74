// -----------------------------------------------------------------------
// Process Monitor - Observes one worker's output and exit condition
// -----------------------------------------------------------------------

package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"

	"github.com/ternarybob/fornax/internal/models"
)

// progressMarker matches the render engine's per-frame progress output,
// e.g. "Fra:42 Mem:210.5M ...". Absence of markers is not an error, it
// only disables fine-grained progress.
var progressMarker = regexp.MustCompile(`^Fra:(\d+)`)

// savedMarker matches the line printed once a frame's output file is
// written. Counting saves rather than Fra: lines avoids counting the
// many per-tile lines the engine emits for a single frame.
var savedMarker = regexp.MustCompile(`^Saved: `)

// monitor consumes the worker's combined output and exit condition,
// then emits exactly one terminal transition. It runs in its own
// goroutine per worker so a stalled sibling can never delay observation.
func (w *Worker) monitor(output io.ReadCloser, logFile *os.File, events chan<- models.WorkerTransition, waitCh <-chan error) {
	defer output.Close()
	if logFile != nil {
		defer logFile.Close()
	}

	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		w.appendLine(line)

		if logFile != nil {
			_, _ = logFile.WriteString(line + "\n")
		}

		if savedMarker.MatchString(line) {
			w.incrementProgress()
		} else if m := progressMarker.FindStringSubmatch(line); m != nil {
			w.logger.Trace().
				Str("device_id", w.device.ID).
				Str("frame", m[1]).
				Msg("Frame in progress")
		}
	}

	// A scan error (for example one output line beyond the buffer cap)
	// stops the loop while the process is still writing. The pipe must
	// keep flowing to EOF or the process wedges on a full pipe and Wait
	// never returns.
	if err := scanner.Err(); err != nil {
		w.logger.Warn().Err(err).
			Str("job_id", w.jobID).
			Str("device_id", w.device.ID).
			Msg("Worker output scan aborted, draining remaining output")
		w.appendLine(fmt.Sprintf("[output truncated: %v]", err))
		_, _ = io.Copy(io.Discard, output)
	}

	waitErr := <-waitCh
	status, exitCode, errMsg := w.classifyExit(waitErr)

	// A worker transitions to a terminal state exactly once
	if !w.markTerminal(status, exitCode, errMsg) {
		return
	}

	w.logger.Info().
		Str("job_id", w.jobID).
		Str("device_id", w.device.ID).
		Str("status", string(status)).
		Int("exit_code", exitCode).
		Int("frames_done", w.progress()).
		Msg("Worker finished")

	events <- models.WorkerTransition{
		JobID:    w.jobID,
		DeviceID: w.device.ID,
		Status:   status,
		ExitCode: exitCode,
		Err:      waitErr,
	}
}

// classifyExit maps the process exit condition to a worker status:
// exit 0 = succeeded, non-zero = failed(code), killed after a
// cancellation request = cancelled.
func (w *Worker) classifyExit(waitErr error) (models.WorkerStatus, int, string) {
	if w.wasCancelRequested() {
		return models.WorkerCancelled, 0, ""
	}

	if waitErr == nil {
		return models.WorkerSucceeded, 0, ""
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return models.WorkerFailed, exitErr.ExitCode(), waitErr.Error()
	}

	// Wait itself failed; treat as a crash with no exit code
	return models.WorkerFailed, -1, waitErr.Error()
}
