package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type enqueueJobRequest struct {
	Type      string `json:"type" validate:"required,oneof=import reindex"`
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
}

// EnqueueJob schedules a background job and returns 202 with the job id.
// Progress is observable via GetJobStatus; the HTTP request never waits
// for the job itself.
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	owner := req.RepoOwner
	repo := req.RepoName
	if owner == "" {
		owner = h.cfg.Import.RepoOwner
	}
	if repo == "" {
		repo = h.cfg.Import.RepoName
	}

	switch req.Type {
	case "import":
		j, err := h.producer.EnqueueImport(r.Context(), owner, repo)
		if err != nil {
			h.logger.Error("enqueueing import job", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "enqueue_failed", "could not schedule job")
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID, "status": "queued"})
	case "reindex":
		j, err := h.producer.EnqueueReindex(r.Context())
		if err != nil {
			h.logger.Error("enqueueing reindex job", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "enqueue_failed", "could not schedule job")
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID, "status": "queued"})
	}
}

func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	status, err := h.tracker.GetJobStatus(r.Context(), jobID)
	if err != nil {
		h.logger.Error("reading job status", zap.String("job_id", jobID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "could not read job status")
		return
	}
	if status == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "unknown or expired job id")
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// IntentBreakdown reports classified-intent volumes from the analytics
// store. Answers 503 when ClickHouse is not configured.
func (h *Handler) IntentBreakdown(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		h.writeError(w, http.StatusServiceUnavailable, "analytics_disabled", "analytics backend is not configured")
		return
	}

	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_window", "'window' must be a positive duration")
			return
		}
		window = d
	}

	breakdown, err := h.analytics.QueryIntentBreakdown(r.Context(), window)
	if err != nil {
		h.logger.Error("querying intent breakdown", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "analytics query failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"window":    window.String(),
		"intents":   breakdown,
		"generated": time.Now().UTC().Format(time.RFC3339),
	})
}
