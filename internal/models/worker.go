package models

import "time"

// WorkerStatus is the state of one background render process.
// Transitions are strictly ordered: pending -> running -> terminal.
type WorkerStatus string

const (
	WorkerPending   WorkerStatus = "pending"
	WorkerRunning   WorkerStatus = "running"
	WorkerSucceeded WorkerStatus = "succeeded"
	WorkerFailed    WorkerStatus = "failed"
	WorkerCancelled WorkerStatus = "cancelled"
)

// Terminal returns true for states from which no further transition occurs
func (s WorkerStatus) Terminal() bool {
	switch s {
	case WorkerSucceeded, WorkerFailed, WorkerCancelled:
		return true
	}
	return false
}

// WorkerState is a point-in-time snapshot of one worker, safe to return
// from status queries while the worker is still writing its log.
type WorkerState struct {
	JobID      string       `json:"job_id"`
	DeviceID   string       `json:"device_id"`
	Device     Device       `json:"device"`
	Frames     string       `json:"frames"`
	Status     WorkerStatus `json:"status"`
	ExitCode   int          `json:"exit_code,omitempty"`
	FramesDone int          `json:"frames_done"`
	Error      string       `json:"error,omitempty"`
	LogTail    []string     `json:"log_tail,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// WorkerTransition is the typed event a monitor emits when its worker
// changes state. Each monitor emits exactly one terminal transition;
// the coordinator consumes them single-threaded off one channel.
type WorkerTransition struct {
	JobID    string
	DeviceID string
	Status   WorkerStatus
	ExitCode int
	Err      error
}
