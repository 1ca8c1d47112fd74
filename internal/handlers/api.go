package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fornax/internal/common"
)

// APIHandler serves the service-level endpoints that exist independently
// of any render job: version, liveness, and the JSON 404 catch-all.
type APIHandler struct {
	logger  arbor.ILogger
	started time.Time
}

func NewAPIHandler() *APIHandler {
	return &APIHandler{
		logger:  common.GetLogger(),
		started: time.Now(),
	}
}

// VersionHandler reports the build identity baked in at compile time
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler is the liveness endpoint. It says the HTTP surface is up,
// nothing about running workers; job state lives under /api/jobs.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// NotFoundHandler keeps unknown paths on the JSON error contract instead
// of the default plain-text 404
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
