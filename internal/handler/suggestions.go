package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/cache"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/suggest"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

const defaultMaxSuggestions = 5

// KnowledgeBankBuilder assembles a suggest.KnowledgeBank for one KB from
// its clusters and concepts. The production implementation composes
// internal/repository's ClusterRepo and ConceptRepo.
type KnowledgeBankBuilder interface {
	BuildSummary(ctx context.Context, kbID string) (suggest.KnowledgeBank, error)
}

// Suggester is satisfied by *internal/suggest.Suggester.
type Suggester interface {
	Suggest(ctx context.Context, kb suggest.KnowledgeBank, maxSuggestions int) ([]model.BuildIdeaSeed, error)
}

// SuggestDeps bundles dependencies for the build-idea suggestion handler.
type SuggestDeps struct {
	Builder   KnowledgeBankBuilder
	Suggester Suggester
	Cache     ResultCache
	Quota     QuotaEnforcer
}

// Suggest handles GET /api/suggestions?kbId=... (§4.K).
func Suggest(deps SuggestDeps) http.HandlerFunc {
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

		max := defaultMaxSuggestions
		if raw := r.URL.Query().Get("max"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				max = n
			}
		}

		if deps.Quota != nil {
			if err := deps.Quota.Admit(r.Context(), userID, usage.MetricBuildSuggestions); err != nil {
				respondErr(w, err)
				return
			}
		}

		// Cached by kbID alone (not `max`) so InvalidateForDocument's single
		// per-kb key actually clears what this handler wrote.
		if deps.Cache != nil {
			if cached, ok := deps.Cache.Get(r.Context(), cache.NamespaceBuildSuggestions, kbID); ok {
				var seeds []model.BuildIdeaSeed
				if json.Unmarshal(cached, &seeds) == nil {
					if deps.Quota != nil {
						deps.Quota.Record(r.Context(), userID, usage.MetricBuildSuggestions, 1)
					}
					respondJSON(w, http.StatusOK, envelope{Success: true, Data: truncateSeeds(seeds, max)})
					return
				}
			}
		}

		kb, err := deps.Builder.BuildSummary(r.Context(), kbID)
		if err != nil {
			respondErr(w, err)
			return
		}

		seeds, err := deps.Suggester.Suggest(r.Context(), kb, max)
		if err != nil {
			respondErr(w, err)
			return
		}

		if deps.Quota != nil {
			deps.Quota.Record(r.Context(), userID, usage.MetricBuildSuggestions, 1)
		}

		if deps.Cache != nil {
			if encoded, err := json.Marshal(seeds); err == nil {
				deps.Cache.Set(r.Context(), cache.NamespaceBuildSuggestions, encoded, kbID)
			}
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: seeds})
	}
}

func truncateSeeds(seeds []model.BuildIdeaSeed, max int) []model.BuildIdeaSeed {
	if max > 0 && len(seeds) > max {
		return seeds[:max]
	}
	return seeds
}
