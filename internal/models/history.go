package models

import "time"

// HistoryEntry is the persisted record of one submitted render job.
// The history is bounded (oldest entries pruned) and survives restarts,
// unlike the session job registry.
type HistoryEntry struct {
	JobID      string     `json:"job_id" badgerhold:"key"`
	SceneFile  string     `json:"scene_file"`
	Mode       RenderMode `json:"mode"`
	Strategy   string     `json:"strategy"`
	Frames     string     `json:"frames"`
	Devices    []string   `json:"devices"`
	Status     JobStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
