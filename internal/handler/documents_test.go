package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

type stubDocStore struct {
	docs      map[int64]model.Document
	byKB      []model.Document
	total     int
	deleted   []int64
	invalidated bool
	listErr, getErr, deleteErr error
}

func (s *stubDocStore) ListByKB(ctx context.Context, kbID string, limit, offset int) ([]model.Document, int, error) {
	return s.byKB, s.total, s.listErr
}

func (s *stubDocStore) GetByID(ctx context.Context, docID int64) (model.Document, error) {
	if s.getErr != nil {
		return model.Document{}, s.getErr
	}
	d, ok := s.docs[docID]
	if !ok {
		return model.Document{}, errNotFoundStub
	}
	return d, nil
}

func (s *stubDocStore) Delete(ctx context.Context, docID int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, docID)
	return nil
}

func (s *stubDocStore) InvalidateForDocument(ctx context.Context, owner, kbID string) {
	s.invalidated = true
}

var errNotFoundStub = &stubErr{"not found"}

type stubErr struct{ msg string }

func (e *stubErr) Error() string { return e.msg }

func withChiParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetDocument_ReturnsOwnedDocument(t *testing.T) {
	store := &stubDocStore{docs: map[int64]model.Document{1: {DocID: 1, Owner: "user-1", KBID: "kb-1"}}}
	deps := DocCRUDDeps{Getter: store}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "1")

	rec := httptest.NewRecorder()
	GetDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetDocument_ForbidsOtherOwner(t *testing.T) {
	store := &stubDocStore{docs: map[int64]model.Document{1: {DocID: 1, Owner: "someone-else"}}}
	deps := DocCRUDDeps{Getter: store}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "1")

	rec := httptest.NewRecorder()
	GetDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGetDocument_RejectsMalformedID(t *testing.T) {
	deps := DocCRUDDeps{Getter: &stubDocStore{}}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/not-a-number", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "not-a-number")

	rec := httptest.NewRecorder()
	GetDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetDocument_RequiresAuth(t *testing.T) {
	deps := DocCRUDDeps{Getter: &stubDocStore{}}
	req := httptest.NewRequest(http.MethodGet, "/api/documents/1", nil)
	req = withChiParam(req, "id", "1")

	rec := httptest.NewRecorder()
	GetDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListDocuments_ReturnsDocsAndTotal(t *testing.T) {
	store := &stubDocStore{byKB: []model.Document{{DocID: 1}, {DocID: 2}}, total: 2}
	deps := DocCRUDDeps{Lister: store}

	req := httptest.NewRequest(http.MethodGet, "/api/kb/kb-1/documents", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "kbId", "kb-1")

	rec := httptest.NewRecorder()
	ListDocuments(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success=true")
	}
}

func TestDeleteDocument_InvalidatesCache(t *testing.T) {
	store := &stubDocStore{docs: map[int64]model.Document{1: {DocID: 1, Owner: "user-1", KBID: "kb-1"}}}
	deps := DocCRUDDeps{Getter: store, Deleter: store, Cache: store}

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "1")

	rec := httptest.NewRecorder()
	DeleteDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(store.deleted) != 1 || store.deleted[0] != 1 {
		t.Errorf("expected document 1 to be deleted, got %v", store.deleted)
	}
	if !store.invalidated {
		t.Error("expected cache invalidation to be called")
	}
}

func TestDeleteDocument_NotFoundForOtherOwner(t *testing.T) {
	store := &stubDocStore{docs: map[int64]model.Document{1: {DocID: 1, Owner: "someone-else"}}}
	deps := DocCRUDDeps{Getter: store, Deleter: store}

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	req = withChiParam(req, "id", "1")

	rec := httptest.NewRecorder()
	DeleteDocument(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(store.deleted) != 0 {
		t.Error("expected no deletion for non-owned document")
	}
}
