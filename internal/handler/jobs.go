package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// JobStatusGetter is satisfied by *internal/queue.Queue.
type JobStatusGetter interface {
	Status(ctx context.Context, id, requestedBy string) (*model.Job, error)
}

// JobCanceller is satisfied by *internal/queue.Queue.
type JobCanceller interface {
	Cancel(ctx context.Context, id, requestedBy string) error
}

// JobDeps bundles dependencies for job status/cancel handlers.
type JobDeps struct {
	Status JobStatusGetter
	Cancel JobCanceller
}

// jobStatusResponse matches §6's job status protocol shape:
// {state, progress:{percent, message}, result?, error?}.
type jobStatusResponse struct {
	State    model.JobState  `json:"state"`
	Progress jobProgress     `json:"progress"`
	Result   interface{}     `json:"result,omitempty"`
	Error    *model.JobError `json:"error,omitempty"`
}

type jobProgress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// GetJobStatus handles GET /api/jobs/{id} — polling endpoint for §6's job
// status protocol (a WebSocket push uses the identical shape).
func GetJobStatus(deps JobDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "job id required"})
			return
		}

		job, err := deps.Status.Status(r.Context(), id, userID)
		if err != nil {
			respondErr(w, err)
			return
		}

		var result interface{}
		if len(job.Result) > 0 {
			result = json.RawMessage(job.Result)
		}

		respondJSON(w, http.StatusOK, jobStatusResponse{
			State:    job.State,
			Progress: jobProgress{Percent: job.ProgressPercent, Message: job.Message},
			Result:   result,
			Error:    job.Error,
		})
	}
}

// CancelJob handles POST /api/jobs/{id}/cancel.
func CancelJob(deps JobDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "job id required"})
			return
		}

		if err := deps.Cancel.Cancel(r.Context(), id, userID); err != nil {
			respondErr(w, err)
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true})
	}
}
