// -----------------------------------------------------------------------
// Job Handler - Render job submission and lifecycle API
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fornax/internal/interfaces"
	"github.com/ternarybob/fornax/internal/models"
	"github.com/ternarybob/fornax/internal/orchestrator"
)

// JobHandler handles render job API requests
type JobHandler struct {
	orchestrator interfaces.Orchestrator
	history      interfaces.HistoryStorage
	logger       arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(orch interfaces.Orchestrator, history interfaces.HistoryStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator: orch,
		history:      history,
		logger:       logger,
	}
}

// submitRequest is the submission payload. Frames accepts the compact
// string form ("1-250" or "1,3,5-10"); the mode decides how it is
// interpreted downstream.
type submitRequest struct {
	Mode           string          `json:"mode"`
	SceneFile      string          `json:"scene_file"`
	Frames         string          `json:"frames"`
	OutputTemplate string          `json:"output_template"`
	Devices        []models.Device `json:"devices"`
	Strategy       string          `json:"strategy"`
	ScriptPath     string          `json:"script_path"`
	Overrides      json.RawMessage `json:"overrides,omitempty"`
	PowerAction    string          `json:"power_action"`
	ExtraArgs      []string        `json:"extra_args,omitempty"`
}

// SubmitJobHandler creates and launches a render job
// POST /api/jobs
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error())
		return
	}

	frames, err := models.ParseFrameString(req.Frames)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid frame specification: "+err.Error())
		return
	}

	job := &models.RenderJob{
		Mode:           models.RenderMode(req.Mode),
		SceneFile:      req.SceneFile,
		Frames:         frames,
		OutputTemplate: req.OutputTemplate,
		Devices:        req.Devices,
		Strategy:       models.AllocationStrategy(req.Strategy),
		ScriptPath:     req.ScriptPath,
		Overrides:      req.Overrides,
		PowerAction:    models.PowerAction(req.PowerAction),
		ExtraArgs:      req.ExtraArgs,
	}

	jobID, err := h.orchestrator.Submit(r.Context(), job)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidDescriptor) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Job submission failed")
		WriteError(w, http.StatusInternalServerError, "Failed to submit job")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(models.JobRunning),
	})
}

// ListJobsHandler returns all jobs of this session, newest first
// GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobs := h.orchestrator.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler returns the full status report for one job
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID required")
		return
	}

	report, err := h.orchestrator.Status(jobID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownJob) {
			WriteError(w, http.StatusNotFound, "Job not found: "+jobID)
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Status query failed")
		WriteError(w, http.StatusInternalServerError, "Failed to get job status")
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// CancelJobHandler requests cancellation of a running job
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID = strings.TrimSuffix(jobID, "/cancel")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID required")
		return
	}

	if err := h.orchestrator.Cancel(jobID); err != nil {
		if errors.Is(err, orchestrator.ErrUnknownJob) {
			WriteError(w, http.StatusNotFound, "Job not found: "+jobID)
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Cancel failed")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Cancel requested via API")
	WriteSuccess(w, "Cancellation requested")
}

// HistoryHandler returns the persisted render history, newest first
// GET /api/history?limit=20
func (h *JobHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	if h.history == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"entries": []*models.HistoryEntry{},
			"count":   0,
		})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list render history")
		WriteError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
