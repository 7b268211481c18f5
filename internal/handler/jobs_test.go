package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

type stubJobStore struct {
	job        *model.Job
	statusErr  error
	cancelErr  error
	cancelled  []string
}

func (s *stubJobStore) Status(ctx context.Context, id, requestedBy string) (*model.Job, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.job, nil
}

func (s *stubJobStore) Cancel(ctx context.Context, id, requestedBy string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)
	return nil
}

func TestGetJobStatus_ReturnsProgressShape(t *testing.T) {
	store := &stubJobStore{job: &model.Job{
		ID: "job-1", State: model.JobProcessing, ProgressPercent: 40, Message: "chunking",
	}}
	deps := JobDeps{Status: store}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "job-1")

	rec := httptest.NewRecorder()
	GetJobStatus(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetJobStatus_ForbiddenMapsTo403(t *testing.T) {
	store := &stubJobStore{statusErr: errs.New(errs.KindForbidden, "not your job")}
	deps := JobDeps{Status: store}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "job-1")

	rec := httptest.NewRecorder()
	GetJobStatus(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCancelJob_CancelsAndReturnsOK(t *testing.T) {
	store := &stubJobStore{}
	deps := JobDeps{Cancel: store}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/job-1/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "job-1")

	rec := httptest.NewRecorder()
	CancelJob(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.cancelled) != 1 || store.cancelled[0] != "job-1" {
		t.Errorf("expected job-1 cancelled, got %v", store.cancelled)
	}
}
