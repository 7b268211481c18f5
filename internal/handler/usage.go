package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/cache"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// PeriodGetter is satisfied by *internal/usage.Accountant.
type PeriodGetter interface {
	CurrentPeriod(ctx context.Context, user string) (model.UsageRecord, error)
}

// SubscriptionGetter is satisfied by *internal/repository.UsageRepo.
type SubscriptionGetter interface {
	SubscriptionFor(ctx context.Context, user string) (model.Subscription, error)
}

// UsageDeps bundles dependencies for the usage-report handler.
type UsageDeps struct {
	Period       PeriodGetter
	Subscription SubscriptionGetter
	Cache        ResultCache
}

type usageResponse struct {
	Usage        model.UsageRecord  `json:"usage"`
	Subscription model.Subscription `json:"subscription"`
}

// GetUsage handles GET /api/usage — the current user's subscription plan
// plus their current calendar-month usage counters (§4.L).
func GetUsage(deps UsageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		if deps.Cache != nil {
			if cached, ok := deps.Cache.Get(r.Context(), cache.NamespaceAnalytics, userID, "usage"); ok {
				var out usageResponse
				if json.Unmarshal(cached, &out) == nil {
					respondJSON(w, http.StatusOK, envelope{Success: true, Data: out})
					return
				}
			}
		}

		record, err := deps.Period.CurrentPeriod(r.Context(), userID)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to load usage"})
			return
		}

		sub, err := deps.Subscription.SubscriptionFor(r.Context(), userID)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to load subscription"})
			return
		}

		out := usageResponse{Usage: record, Subscription: sub}
		if deps.Cache != nil {
			if encoded, err := json.Marshal(out); err == nil {
				deps.Cache.Set(r.Context(), cache.NamespaceAnalytics, encoded, userID, "usage")
			}
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: out})
	}
}
