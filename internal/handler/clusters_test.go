package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/cluster"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
)

type stubClusterLister struct {
	clusters []cluster.Cluster
	err      error
	gotKBID  string
}

func (s *stubClusterLister) ListByKB(ctx context.Context, kbID string) ([]cluster.Cluster, error) {
	s.gotKBID = kbID
	return s.clusters, s.err
}

func TestListClusters_ReturnsClustersForKB(t *testing.T) {
	stub := &stubClusterLister{clusters: []cluster.Cluster{{ID: 1, Name: "Go Basics"}}}
	deps := ClusterDeps{Clusters: stub}

	req := httptest.NewRequest(http.MethodGet, "/api/clusters?kbId=kb-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	ListClusters(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if stub.gotKBID != "kb-1" {
		t.Errorf("kbID = %q, want kb-1", stub.gotKBID)
	}
}

func TestListClusters_RequiresKBID(t *testing.T) {
	deps := ClusterDeps{Clusters: &stubClusterLister{}}

	req := httptest.NewRequest(http.MethodGet, "/api/clusters", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	ListClusters(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
