package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/queue"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

type stubDocCreator struct {
	nextID    int64
	created   []model.Document
	createErr error
}

func (s *stubDocCreator) NextDocID(ctx context.Context) (int64, error) {
	return s.nextID, nil
}

func (s *stubDocCreator) Create(ctx context.Context, doc model.Document, vec model.VectorDocument) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, doc)
	return nil
}

type stubEnqueuer struct {
	payload queue.Payload
	jobID   string
	err     error
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, p queue.Payload) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.payload = p
	return s.jobID, nil
}

type stubBlobPutter struct {
	docID string
	data  []byte
	path  string
	err   error
}

func (s *stubBlobPutter) Put(ctx context.Context, docID string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.docID, s.data = docID, data
	if s.path == "" {
		return "gs://bucket/uploads/" + docID, nil
	}
	return s.path, nil
}

type stubQuotaEnforcer struct {
	admitErr error
	recorded []usage.Metric
}

func (s *stubQuotaEnforcer) Admit(ctx context.Context, user string, metric usage.Metric) error {
	return s.admitErr
}

func (s *stubQuotaEnforcer) Record(ctx context.Context, user string, metric usage.Metric, delta int64) {
	s.recorded = append(s.recorded, metric)
}

func TestIngestDocument_CreatesAndEnqueues(t *testing.T) {
	docs := &stubDocCreator{nextID: 42}
	q := &stubEnqueuer{jobID: "job-1"}
	deps := IngestDeps{Docs: docs, Queue: q, Blobs: &stubBlobPutter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1&filename=notes.txt", strings.NewReader("some text"))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	if len(docs.created) != 1 || docs.created[0].DocID != 42 {
		t.Fatalf("expected document 42 created, got %v", docs.created)
	}
	if q.payload.Task != "process_document" || q.payload.Owner != "user-1" {
		t.Errorf("unexpected enqueued payload: %+v", q.payload)
	}
}

func TestIngestDocument_RejectsEmptyBody(t *testing.T) {
	deps := IngestDeps{Docs: &stubDocCreator{}, Queue: &stubEnqueuer{}, Blobs: &stubBlobPutter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1", strings.NewReader(""))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestDocument_RequiresKBID(t *testing.T) {
	deps := IngestDeps{Docs: &stubDocCreator{}, Queue: &stubEnqueuer{}, Blobs: &stubBlobPutter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents", strings.NewReader("text"))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestDocument_RejectsLocalhostURL(t *testing.T) {
	docs := &stubDocCreator{nextID: 1}
	deps := IngestDeps{Docs: docs, Queue: &stubEnqueuer{}, Blobs: &stubBlobPutter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1&sourceType=url",
		strings.NewReader("http://169.254.169.254/latest/meta-data/"))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
	if len(docs.created) != 0 {
		t.Fatalf("expected no document created for a rejected url, got %v", docs.created)
	}
}

func TestIngestDocument_AcceptsValidatedURL(t *testing.T) {
	docs := &stubDocCreator{nextID: 7}
	q := &stubEnqueuer{jobID: "job-2"}
	deps := IngestDeps{Docs: docs, Queue: q, Blobs: &stubBlobPutter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1&sourceType=url",
		strings.NewReader("https://example.com/article"))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	if len(docs.created) != 1 || docs.created[0].SourceURL == nil || *docs.created[0].SourceURL != "https://example.com/article" {
		t.Fatalf("expected SourceURL to be set on the created document, got %+v", docs.created)
	}
}

func TestIngestDocument_QuotaExhaustedRejectsBeforeCreate(t *testing.T) {
	docs := &stubDocCreator{nextID: 1}
	quota := &stubQuotaEnforcer{admitErr: errs.Quota(50, 50, "2026-08-01T00:00:00Z")}
	deps := IngestDeps{Docs: docs, Queue: &stubEnqueuer{}, Blobs: &stubBlobPutter{}, Quota: quota}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1&filename=notes.txt", strings.NewReader("some text"))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body=%s", rec.Code, rec.Body.String())
	}
	if len(docs.created) != 0 {
		t.Fatalf("expected no document created once quota is exhausted, got %v", docs.created)
	}
}

func TestIngestDocument_RecordsUsageOnSuccess(t *testing.T) {
	docs := &stubDocCreator{nextID: 1}
	quota := &stubQuotaEnforcer{}
	deps := IngestDeps{Docs: docs, Queue: &stubEnqueuer{jobID: "job-3"}, Blobs: &stubBlobPutter{}, Quota: quota}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1&filename=notes.txt", strings.NewReader("some text"))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	if len(quota.recorded) != 1 || quota.recorded[0] != usage.MetricDocumentsUpload {
		t.Fatalf("expected documents_uploaded to be recorded once, got %v", quota.recorded)
	}
}

func TestIngestDocument_RequiresAuth(t *testing.T) {
	deps := IngestDeps{Docs: &stubDocCreator{}, Queue: &stubEnqueuer{}, Blobs: &stubBlobPutter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/kb/documents?kbId=kb-1", strings.NewReader("text"))

	rec := httptest.NewRecorder()
	IngestDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
