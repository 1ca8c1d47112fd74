// -----------------------------------------------------------------------
// Coordinator - Render job orchestration core
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fornax/internal/allocator"
	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/interfaces"
	"github.com/ternarybob/fornax/internal/models"
)

var (
	// ErrInvalidDescriptor is returned by Submit when the job descriptor
	// fails validation. Nothing has been launched; the caller can correct
	// the input and resubmit.
	ErrInvalidDescriptor = errors.New("invalid job descriptor")

	// ErrUnknownJob is returned for operations on a job ID this session
	// has never seen
	ErrUnknownJob = errors.New("unknown job")
)

// jobRecord is the coordinator's mutable per-job state. The descriptor
// itself is immutable; everything derived lives here under the
// coordinator mutex.
type jobRecord struct {
	job         *models.RenderJob
	workers     map[string]WorkerHandle      // launched workers by device ID
	failed      map[string]models.WorkerState // launch failures, synthetic terminal states
	deviceOrder []string
	status      models.JobStatus
	cancelled   bool
	finishedAt  *time.Time
}

// Coordinator tracks every job of the session, launches workers through
// the configured launcher and derives aggregate job state from worker
// transitions. Transitions from all monitors arrive on one channel and
// are consumed by a single goroutine, so aggregate recomputation is
// serialized without per-job locking.
type Coordinator struct {
	launcher Launcher
	history  interfaces.HistoryStorage
	events   interfaces.EventService
	notifier interfaces.Notifier
	power    interfaces.PowerManager
	config   *common.Config
	logger   arbor.ILogger

	mu    sync.RWMutex
	jobs  map[string]*jobRecord
	order []string

	transitions chan models.WorkerTransition
	done        chan struct{}
	stopOnce    sync.Once
}

// NewCoordinator wires the orchestration core and starts its consumer
// loop. Call Stop on shutdown.
func NewCoordinator(launcher Launcher, history interfaces.HistoryStorage, events interfaces.EventService, notifier interfaces.Notifier, power interfaces.PowerManager, config *common.Config, logger arbor.ILogger) *Coordinator {
	c := &Coordinator{
		launcher:    launcher,
		history:     history,
		events:      events,
		notifier:    notifier,
		power:       power,
		config:      config,
		logger:      logger,
		jobs:        make(map[string]*jobRecord),
		transitions: make(chan models.WorkerTransition, 64),
		done:        make(chan struct{}),
	}

	common.SafeGo(c.logger, "coordinator-consume", c.consume)
	common.SafeGo(c.logger, "coordinator-progress", c.broadcastProgress)

	return c
}

// Stop terminates the consumer loop. Running workers are not cancelled;
// callers that want a clean shutdown cancel jobs first.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// ---- Submit ----

// Submit validates the descriptor, allocates frames to devices, records
// the job and launches one worker per non-empty assignment. It returns
// the job ID as soon as launches are issued; render progress is observed
// through Status and the event stream.
func (c *Coordinator) Submit(ctx context.Context, job *models.RenderJob) (string, error) {
	if job == nil {
		return "", fmt.Errorf("%w: nil job", ErrInvalidDescriptor)
	}
	if job.ID == "" {
		job.ID = common.NewJobID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := job.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDescriptor, err.Error())
	}

	assignments, err := allocator.Allocate(job.Frames, job.Devices, job.Strategy)
	if err != nil {
		c.logger.Error().Err(err).Str("job_id", job.ID).Msg("Frame allocation failed")
		return "", fmt.Errorf("%w: %s", ErrInvalidDescriptor, err.Error())
	}

	rec := &jobRecord{
		job:     job,
		workers: make(map[string]WorkerHandle),
		failed:  make(map[string]models.WorkerState),
		status:  models.JobRunning,
	}

	c.mu.Lock()
	if _, exists := c.jobs[job.ID]; exists {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: duplicate job ID %q", ErrInvalidDescriptor, job.ID)
	}
	// Every device that will get a worker is registered before the first
	// launch. A fast-exiting early worker can therefore never present the
	// aggregate with a complete terminal set while siblings are still
	// waiting on their staggered launch.
	for _, a := range assignments {
		if !a.Frames.IsEmpty() {
			rec.deviceOrder = append(rec.deviceOrder, a.Device.ID)
		}
	}
	c.jobs[job.ID] = rec
	c.order = append(c.order, job.ID)
	c.mu.Unlock()

	c.logger.Info().
		Str("job_id", job.ID).
		Str("scene", job.SceneFile).
		Str("frames", job.Frames.String()).
		Str("strategy", string(job.Strategy)).
		Int("devices", len(job.Devices)).
		Msg("Job submitted")

	c.saveHistory(ctx, job)

	if c.power != nil {
		if err := c.power.Inhibit(job.ID); err != nil {
			c.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Sleep inhibit failed")
		}
	}

	c.publish(interfaces.EventJobSubmitted, map[string]interface{}{
		"job_id":     job.ID,
		"scene_file": job.SceneFile,
		"frames":     job.Frames.String(),
		"devices":    len(job.Devices),
		"timestamp":  time.Now().Format(time.RFC3339),
	})

	c.launchWorkers(rec, assignments)

	// All launches may have failed synchronously; settle the aggregate
	// so such a job does not linger as running.
	c.mu.Lock()
	c.settleLocked(rec)
	c.mu.Unlock()

	return job.ID, nil
}

// launchWorkers spawns one worker per non-empty assignment, honoring the
// configured stagger between consecutive launches. A launch failure on
// one device is recorded as a synthetic failed worker and does not stop
// the remaining launches.
func (c *Coordinator) launchWorkers(rec *jobRecord, assignments allocator.Allocation) {
	stagger := c.config.Render.LaunchStaggerDuration()
	launched := 0

	for _, a := range assignments {
		if a.Frames.IsEmpty() {
			c.logger.Debug().
				Str("job_id", rec.job.ID).
				Str("device_id", a.Device.ID).
				Msg("No frames for device, skipping launch")
			continue
		}

		if launched > 0 && stagger > 0 {
			time.Sleep(stagger)
		}

		handle, err := c.launcher.Launch(rec.job.ID, a.Device, a.Frames, rec.job, c.transitions)

		c.mu.Lock()
		if err != nil {
			now := time.Now()
			rec.failed[a.Device.ID] = models.WorkerState{
				JobID:      rec.job.ID,
				DeviceID:   a.Device.ID,
				Device:     a.Device,
				Frames:     a.Frames.String(),
				Status:     models.WorkerFailed,
				ExitCode:   -1,
				Error:      err.Error(),
				FinishedAt: &now,
			}
			c.mu.Unlock()
			c.logger.Error().Err(err).
				Str("job_id", rec.job.ID).
				Str("device_id", a.Device.ID).
				Msg("Worker launch failed")
			continue
		}
		rec.workers[a.Device.ID] = handle
		c.mu.Unlock()

		launched++
		c.logger.Info().
			Str("job_id", rec.job.ID).
			Str("device_id", a.Device.ID).
			Str("frames", a.Frames.String()).
			Msg("Worker launched")
	}
}

// ---- Cancel ----

// Cancel requests termination of every non-terminal worker of the job.
// Workers that already finished keep their outcome; the aggregate becomes
// cancelled once all workers settle. Cancelling a terminal job is a no-op.
func (c *Coordinator) Cancel(jobID string) error {
	c.mu.Lock()
	rec, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if rec.status.Terminal() {
		c.mu.Unlock()
		c.logger.Debug().Str("job_id", jobID).Msg("Cancel on terminal job ignored")
		return nil
	}
	rec.cancelled = true
	handles := make([]WorkerHandle, 0, len(rec.workers))
	for _, h := range rec.workers {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	c.logger.Info().Str("job_id", jobID).Msg("Cancelling job")

	grace := c.config.Render.CancelGraceDuration()
	for _, h := range handles {
		if h.Snapshot(0).Status.Terminal() {
			continue
		}
		h.Cancel(grace)
	}

	// A cancel may land when every worker already settled but the
	// terminal hook has not fired; force a recompute.
	c.mu.Lock()
	c.settleLocked(rec)
	c.mu.Unlock()

	return nil
}

// ---- Queries ----

// Status returns the aggregate state and per-worker detail for one job
func (c *Coordinator) Status(jobID string) (*models.JobStatusReport, error) {
	c.mu.RLock()
	rec, ok := c.jobs[jobID]
	if !ok {
		c.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	report := &models.JobStatusReport{
		JobID:      rec.job.ID,
		Status:     rec.status,
		Mode:       rec.job.Mode,
		SceneFile:  rec.job.SceneFile,
		Frames:     rec.job.Frames.String(),
		CreatedAt:  rec.job.CreatedAt,
		FinishedAt: rec.finishedAt,
	}
	order := append([]string(nil), rec.deviceOrder...)
	handles := make(map[string]WorkerHandle, len(rec.workers))
	for id, h := range rec.workers {
		handles[id] = h
	}
	failed := make(map[string]models.WorkerState, len(rec.failed))
	for id, s := range rec.failed {
		failed[id] = s
	}
	c.mu.RUnlock()

	tail := c.config.Render.LogTailLines
	for _, deviceID := range order {
		if state, ok := failed[deviceID]; ok {
			report.Workers = append(report.Workers, state)
			continue
		}
		if h, ok := handles[deviceID]; ok {
			report.Workers = append(report.Workers, h.Snapshot(tail))
		}
	}
	return report, nil
}

// List returns a summary of every job of the session, newest first
func (c *Coordinator) List() []*models.JobSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summaries := make([]*models.JobSummary, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		rec := c.jobs[c.order[i]]
		summaries = append(summaries, &models.JobSummary{
			JobID:       rec.job.ID,
			SceneFile:   rec.job.SceneFile,
			Mode:        rec.job.Mode,
			Status:      rec.status,
			Frames:      rec.job.Frames.String(),
			DeviceCount: len(rec.job.Devices),
			CreatedAt:   rec.job.CreatedAt,
			FinishedAt:  rec.finishedAt,
		})
	}
	return summaries
}

// ---- Transition consumption ----

// consume is the single consumer of worker transitions. Serializing all
// aggregate recomputation here keeps terminal hooks exactly-once without
// per-job synchronization.
func (c *Coordinator) consume() {
	for {
		select {
		case <-c.done:
			return
		case t := <-c.transitions:
			c.handleTransition(t)
		}
	}
}

func (c *Coordinator) handleTransition(t models.WorkerTransition) {
	c.mu.Lock()
	rec, ok := c.jobs[t.JobID]
	if !ok {
		c.mu.Unlock()
		c.logger.Warn().Str("job_id", t.JobID).Str("device_id", t.DeviceID).Msg("Transition for unknown job")
		return
	}
	c.settleLocked(rec)
	c.mu.Unlock()

	payload := map[string]interface{}{
		"job_id":    t.JobID,
		"device_id": t.DeviceID,
		"status":    string(t.Status),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if t.Status == models.WorkerFailed {
		payload["exit_code"] = t.ExitCode
	}
	c.publish(interfaces.EventWorkerTransition, payload)
}

// settleLocked recomputes the aggregate job state from worker states and
// fires the terminal hooks on the running-to-terminal edge. Caller holds
// the coordinator mutex.
func (c *Coordinator) settleLocked(rec *jobRecord) {
	if rec.status.Terminal() {
		return
	}

	next, settled := c.aggregate(rec)
	if !settled {
		return
	}

	now := time.Now()
	rec.status = next
	rec.finishedAt = &now

	c.logger.Info().
		Str("job_id", rec.job.ID).
		Str("status", string(next)).
		Msg("Job reached terminal state")

	// Hooks run outside the lock path via SafeGo; the status flip above
	// guarantees they fire at most once per job.
	job := rec.job
	finishedAt := now
	common.SafeGo(c.logger, "job-terminal-"+job.ID, func() {
		c.onTerminal(job, next, finishedAt)
	})
}

// aggregate derives the job state from its workers. The job settles only
// when every worker is terminal. Cancellation dominates; otherwise the
// state reflects how many workers succeeded.
func (c *Coordinator) aggregate(rec *jobRecord) (models.JobStatus, bool) {
	total := len(rec.deviceOrder)
	if total == 0 {
		return models.JobRunning, false
	}

	var succeeded, failedCount, cancelledCount int
	for _, deviceID := range rec.deviceOrder {
		var status models.WorkerStatus
		if state, ok := rec.failed[deviceID]; ok {
			status = state.Status
		} else if h, ok := rec.workers[deviceID]; ok {
			status = h.Snapshot(0).Status
		}
		switch status {
		case models.WorkerSucceeded:
			succeeded++
		case models.WorkerFailed:
			failedCount++
		case models.WorkerCancelled:
			cancelledCount++
		default:
			return models.JobRunning, false
		}
	}

	switch {
	case rec.cancelled || cancelledCount > 0:
		return models.JobCancelled, true
	case succeeded == total:
		return models.JobCompleted, true
	case failedCount == total:
		return models.JobFailed, true
	default:
		return models.JobPartiallyFailed, true
	}
}

// onTerminal runs the side effects of a job reaching terminal state:
// history outcome, terminal event, desktop notification, sleep inhibitor
// release and any requested power action. Failures here are logged and
// never alter the job outcome.
func (c *Coordinator) onTerminal(job *models.RenderJob, status models.JobStatus, finishedAt time.Time) {
	ctx := context.Background()

	if c.history != nil {
		if err := c.history.SetOutcome(ctx, job.ID, status, finishedAt); err != nil {
			c.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to record job outcome")
		}
	}

	c.publish(interfaces.EventJobTerminal, map[string]interface{}{
		"job_id":    job.ID,
		"status":    string(status),
		"timestamp": finishedAt.Format(time.RFC3339),
	})

	if c.notifier != nil {
		summary := fmt.Sprintf("%s (%s frames %s)", job.SceneFile, job.Mode, job.Frames.String())
		if err := c.notifier.Notify(ctx, job.ID, status, summary); err != nil {
			c.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Notification failed")
		}
	}

	if c.power != nil {
		c.power.Release(job.ID)
		if job.PowerAction != "" && job.PowerAction != models.PowerNone {
			if err := c.power.Request(job.PowerAction); err != nil {
				c.logger.Warn().Err(err).
					Str("job_id", job.ID).
					Str("action", string(job.PowerAction)).
					Msg("Power action failed")
			}
		}
	}
}

// ---- Progress broadcast ----

// broadcastProgress periodically publishes per-worker progress for
// running jobs so WebSocket clients can render live frame counts without
// polling the status endpoint.
func (c *Coordinator) broadcastProgress() {
	interval := c.config.WebSocket.ProgressIntervalDuration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.publishRunningProgress()
		}
	}
}

func (c *Coordinator) publishRunningProgress() {
	c.mu.RLock()
	type running struct {
		jobID  string
		handle WorkerHandle
	}
	var active []running
	for _, jobID := range c.order {
		rec := c.jobs[jobID]
		if rec.status.Terminal() {
			continue
		}
		for _, h := range rec.workers {
			active = append(active, running{jobID: jobID, handle: h})
		}
	}
	c.mu.RUnlock()

	for _, r := range active {
		state := r.handle.Snapshot(0)
		if state.Status != models.WorkerRunning {
			continue
		}
		c.publish(interfaces.EventWorkerProgress, map[string]interface{}{
			"job_id":      r.jobID,
			"device_id":   state.DeviceID,
			"frames_done": state.FramesDone,
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	}
}

// ---- Helpers ----

func (c *Coordinator) saveHistory(ctx context.Context, job *models.RenderJob) {
	if c.history == nil {
		return
	}
	devices := make([]string, 0, len(job.Devices))
	for _, d := range job.Devices {
		devices = append(devices, d.Name)
	}
	entry := &models.HistoryEntry{
		JobID:     job.ID,
		SceneFile: job.SceneFile,
		Mode:      job.Mode,
		Strategy:  string(job.Strategy),
		Frames:    job.Frames.String(),
		Devices:   devices,
		Status:    models.JobRunning,
		CreatedAt: job.CreatedAt,
	}
	if err := c.history.Save(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to save history entry")
	}
}

func (c *Coordinator) publish(eventType interfaces.EventType, payload map[string]interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		c.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Event publish failed")
	}
}
