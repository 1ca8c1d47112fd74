package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/models"
	"github.com/ternarybob/fornax/internal/orchestrator"
)

// mockOrchestrator implements interfaces.Orchestrator for testing
type mockOrchestrator struct {
	submitFunc func(ctx context.Context, job *models.RenderJob) (string, error)
	cancelFunc func(jobID string) error
	statusFunc func(jobID string) (*models.JobStatusReport, error)
	listFunc   func() []*models.JobSummary
}

func (m *mockOrchestrator) Submit(ctx context.Context, job *models.RenderJob) (string, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, job)
	}
	return "job_mock", nil
}

func (m *mockOrchestrator) Cancel(jobID string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(jobID)
	}
	return nil
}

func (m *mockOrchestrator) Status(jobID string) (*models.JobStatusReport, error) {
	if m.statusFunc != nil {
		return m.statusFunc(jobID)
	}
	return &models.JobStatusReport{JobID: jobID, Status: models.JobRunning}, nil
}

func (m *mockOrchestrator) List() []*models.JobSummary {
	if m.listFunc != nil {
		return m.listFunc()
	}
	return nil
}

func newTestJobHandler(orch *mockOrchestrator) *JobHandler {
	return NewJobHandler(orch, nil, common.GetLogger())
}

func TestSubmitJobHandler(t *testing.T) {
	var captured *models.RenderJob
	orch := &mockOrchestrator{
		submitFunc: func(ctx context.Context, job *models.RenderJob) (string, error) {
			captured = job
			return "job_abc", nil
		},
	}
	handler := newTestJobHandler(orch)

	body := `{
		"mode": "animation",
		"scene_file": "shot04.blend",
		"frames": "1,3,5-10",
		"strategy": "split",
		"devices": [{"id": "GPU0", "name": "RTX 4090", "backend": "OPTIX"}]
	}`
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.SubmitJobHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job_abc", resp["job_id"])

	require.NotNil(t, captured)
	assert.Equal(t, models.ModeAnimation, captured.Mode)
	assert.Equal(t, "1, 3, 5-10", captured.Frames.String())
	require.Len(t, captured.Devices, 1)
	assert.Equal(t, models.BackendOptiX, captured.Devices[0].Backend)
}

func TestSubmitJobHandlerRejectsBadFrames(t *testing.T) {
	handler := newTestJobHandler(&mockOrchestrator{})

	body := `{"mode": "animation", "scene_file": "a.blend", "frames": "abc", "strategy": "split", "devices": [{"id": "GPU0", "backend": "CUDA"}]}`
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.SubmitJobHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "frame specification")
}

func TestSubmitJobHandlerMapsDescriptorErrors(t *testing.T) {
	orch := &mockOrchestrator{
		submitFunc: func(ctx context.Context, job *models.RenderJob) (string, error) {
			return "", orchestrator.ErrInvalidDescriptor
		},
	}
	handler := newTestJobHandler(orch)

	body := `{"mode": "image", "scene_file": "a.blend", "frames": "1-5", "strategy": "split", "devices": [{"id": "GPU0", "backend": "CUDA"}]}`
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.SubmitJobHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobHandlerNotFound(t *testing.T) {
	orch := &mockOrchestrator{
		statusFunc: func(jobID string) (*models.JobStatusReport, error) {
			return nil, orchestrator.ErrUnknownJob
		},
	}
	handler := newTestJobHandler(orch)

	req := httptest.NewRequest("GET", "/api/jobs/job_missing", nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJobHandler(t *testing.T) {
	var cancelled string
	orch := &mockOrchestrator{
		cancelFunc: func(jobID string) error {
			cancelled = jobID
			return nil
		},
	}
	handler := newTestJobHandler(orch)

	req := httptest.NewRequest("POST", "/api/jobs/job_abc/cancel", nil)
	rec := httptest.NewRecorder()
	handler.CancelJobHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "job_abc", cancelled)
}

func TestCancelJobHandlerUnknownJob(t *testing.T) {
	orch := &mockOrchestrator{
		cancelFunc: func(jobID string) error {
			return orchestrator.ErrUnknownJob
		},
	}
	handler := newTestJobHandler(orch)

	req := httptest.NewRequest("POST", "/api/jobs/job_missing/cancel", nil)
	rec := httptest.NewRecorder()
	handler.CancelJobHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsHandler(t *testing.T) {
	orch := &mockOrchestrator{
		listFunc: func() []*models.JobSummary {
			return []*models.JobSummary{
				{JobID: "job_2", Status: models.JobRunning},
				{JobID: "job_1", Status: models.JobCompleted},
			}
		},
	}
	handler := newTestJobHandler(orch)

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs  []*models.JobSummary `json:"jobs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "job_2", resp.Jobs[0].JobID)
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestJobHandler(&mockOrchestrator{})

	req := httptest.NewRequest("DELETE", "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.SubmitJobHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
