package handler

import (
	"context"
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/cluster"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
)

// ClusterLister is satisfied by *internal/repository.ClusterRepo.
type ClusterLister interface {
	ListByKB(ctx context.Context, kbID string) ([]cluster.Cluster, error)
}

// ClusterDeps bundles dependencies for the cluster listing handler.
type ClusterDeps struct {
	Clusters ClusterLister
}

// ListClusters handles GET /api/clusters?kbId=... (§4.G).
func ListClusters(deps ClusterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		kbID := r.URL.Query().Get("kbId")
		if kbID == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "kbId is required"})
			return
		}

		clusters, err := deps.Clusters.ListByKB(r.Context(), kbID)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to list clusters"})
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: clusters})
	}
}
