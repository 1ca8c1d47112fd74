// -----------------------------------------------------------------------
// Render Job - Immutable descriptor for one submitted render job
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// RenderMode selects what kind of render the job performs
type RenderMode string

const (
	ModeImage     RenderMode = "image"      // single still frame
	ModeAnimation RenderMode = "animation"  // contiguous frame sequence
	ModeFrameList RenderMode = "frame_list" // explicit frame list
)

// AllocationStrategy is the policy for dividing frames among devices
type AllocationStrategy string

const (
	// StrategySplit partitions frames into disjoint contiguous blocks,
	// one per device in list order.
	StrategySplit AllocationStrategy = "split"
	// StrategyReplicate gives every device the full frame set. Used when
	// devices are independent render back-ends rather than fungible peers.
	StrategyReplicate AllocationStrategy = "replicate"
)

// PowerAction is the system action requested after a job reaches a
// terminal state
type PowerAction string

const (
	PowerNone     PowerAction = "none"
	PowerSleep    PowerAction = "sleep"
	PowerShutdown PowerAction = "shutdown"
)

// Valid returns true for a known power action
func (p PowerAction) Valid() bool {
	switch p {
	case PowerNone, PowerSleep, PowerShutdown:
		return true
	}
	return false
}

// RenderJob is the immutable descriptor produced by the configuration
// surface. Once submitted it is never modified; the orchestrator only
// reads it. The override payload and output template are opaque here -
// they are forwarded to the render process untouched.
type RenderJob struct {
	ID             string             `json:"id"`
	Mode           RenderMode         `json:"mode" validate:"required,oneof=image animation frame_list"`
	SceneFile      string             `json:"scene_file" validate:"required"`
	Frames         FrameSet           `json:"frames"`
	OutputTemplate string             `json:"output_template"`
	Devices        []Device           `json:"devices" validate:"required,min=1,dive"`
	Strategy       AllocationStrategy `json:"strategy" validate:"required,oneof=split replicate"`
	ScriptPath     string             `json:"script_path"`
	Overrides      json.RawMessage    `json:"overrides,omitempty"`
	PowerAction    PowerAction        `json:"power_action"`
	ExtraArgs      []string           `json:"extra_args,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

var validate = validator.New()

// Validate checks the descriptor before any process is spawned.
// A failure here is fully recoverable by the caller correcting the input.
func (j *RenderJob) Validate() error {
	if err := validate.Struct(j); err != nil {
		return err
	}
	if err := j.Frames.Validate(); err != nil {
		return err
	}
	if j.Mode == ModeImage && j.Frames.Count() != 1 {
		return fmt.Errorf("image mode requires exactly one frame, got %d", j.Frames.Count())
	}
	seen := make(map[string]bool, len(j.Devices))
	for _, d := range j.Devices {
		if !d.Backend.Valid() {
			return fmt.Errorf("unknown device backend %q", d.Backend)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate device %q", d.ID)
		}
		seen[d.ID] = true
	}
	if j.PowerAction != "" && !j.PowerAction.Valid() {
		return fmt.Errorf("unknown power action %q", j.PowerAction)
	}
	return nil
}

// JobStatus is the aggregate state over all workers of a job.
// It is derived from worker states and never stored independently.
type JobStatus string

const (
	JobRunning         JobStatus = "running"
	JobCompleted       JobStatus = "completed"
	JobPartiallyFailed JobStatus = "partially_failed"
	JobFailed          JobStatus = "failed"
	JobCancelled       JobStatus = "cancelled"
)

// Terminal returns true for states from which no further transition occurs
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobPartiallyFailed, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobSummary is the list-view projection of a job
type JobSummary struct {
	JobID       string     `json:"job_id"`
	SceneFile   string     `json:"scene_file"`
	Mode        RenderMode `json:"mode"`
	Status      JobStatus  `json:"status"`
	Frames      string     `json:"frames"`
	DeviceCount int        `json:"device_count"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// JobStatusReport is the full status response: aggregate state plus
// per-worker detail, so a partially failed render is distinguishable from
// a total failure and the caller can see exactly which devices to resubmit.
type JobStatusReport struct {
	JobID      string        `json:"job_id"`
	Status     JobStatus     `json:"status"`
	Mode       RenderMode    `json:"mode"`
	SceneFile  string        `json:"scene_file"`
	Frames     string        `json:"frames"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Workers    []WorkerState `json:"workers"`
}
