package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/cache"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/rag"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

const defaultSearchTopK = 8

// Answerer is satisfied by *internal/rag.Orchestrator.
type Answerer interface {
	Answer(ctx context.Context, kbID, query string, topK int) (*rag.Response, error)
}

// ResultCache is the read-through cache seam of §4.N, satisfied directly by
// *internal/cache.Cache. Nil-safe: a nil ResultCache just skips caching.
type ResultCache interface {
	Get(ctx context.Context, ns cache.Namespace, keyParts ...string) ([]byte, bool)
	Set(ctx context.Context, ns cache.Namespace, value []byte, keyParts ...string)
}

// SearchDeps bundles dependencies for the search/answer handler.
type SearchDeps struct {
	Orchestrator Answerer
	Cache        ResultCache
	Quota        QuotaEnforcer
}

// searchResponse mirrors rag.Response (§4.J: "RAGResponse{answer,
// citations, degraded, chunks_used}").
type searchResponse struct {
	Answer     string  `json:"answer"`
	Citations  []int64 `json:"citations"`
	Degraded   bool    `json:"degraded"`
	ChunksUsed int     `json:"chunksUsed"`
}

// Search handles GET /api/search?kbId=...&q=...&topK=....
func Search(deps SearchDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		kbID := r.URL.Query().Get("kbId")
		query := r.URL.Query().Get("q")
		if kbID == "" || query == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "kbId and q are required"})
			return
		}

		topK := defaultSearchTopK
		if raw := r.URL.Query().Get("topK"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				topK = n
			}
		}

		if deps.Quota != nil {
			if err := deps.Quota.Admit(r.Context(), userID, usage.MetricSearchQueries); err != nil {
				respondErr(w, err)
				return
			}
		}

		cacheKey := cache.SearchKey(query, fmt.Sprintf("kb=%s&topK=%d", kbID, topK))
		if deps.Cache != nil {
			if cached, ok := deps.Cache.Get(r.Context(), cache.NamespaceSearch, userID, cacheKey); ok {
				var out searchResponse
				if json.Unmarshal(cached, &out) == nil {
					if deps.Quota != nil {
						deps.Quota.Record(r.Context(), userID, usage.MetricSearchQueries, 1)
					}
					respondJSON(w, http.StatusOK, envelope{Success: true, Data: out})
					return
				}
			}
		}

		resp, err := deps.Orchestrator.Answer(r.Context(), kbID, query, topK)
		if err != nil {
			respondErr(w, err)
			return
		}

		if deps.Quota != nil {
			deps.Quota.Record(r.Context(), userID, usage.MetricSearchQueries, 1)
		}

		out := searchResponse{
			Answer: resp.Answer, Citations: resp.Citations, Degraded: resp.Degraded, ChunksUsed: resp.ChunksUsed,
		}
		if deps.Cache != nil {
			if encoded, err := json.Marshal(out); err == nil {
				deps.Cache.Set(r.Context(), cache.NamespaceSearch, encoded, userID, cacheKey)
			}
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: out})
	}
}
