package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/suggest"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

// MarketValidator is satisfied by *internal/suggest.MarketValidator.
type MarketValidator interface {
	Validate(ctx context.Context, in suggest.IdeaValidationInput) (model.MarketValidation, error)
}

// ValidateDeps bundles dependencies for the market validation handler.
type ValidateDeps struct {
	Validator MarketValidator
	Quota     QuotaEnforcer
}

type validateRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	TargetMarket     string `json:"targetMarket"`
	KnowledgeSummary string `json:"knowledgeSummary"`
}

// ValidateIdea handles POST /api/suggestions/validate, the §4.K suggester's
// companion endpoint: given a build idea (typically one a prior /api/suggestions
// call produced), ask the oracle for a brutally honest market-viability
// verdict before the user commits time to building it.
func ValidateIdea(deps ValidateDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "failed to read request body"})
			return
		}
		var req validateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Title == "" {
			respondErr(w, errs.Validation("title", "title is required"))
			return
		}

		if deps.Quota != nil {
			if err := deps.Quota.Admit(r.Context(), userID, usage.MetricAIRequests); err != nil {
				respondErr(w, err)
				return
			}
		}

		result, err := deps.Validator.Validate(r.Context(), suggest.IdeaValidationInput{
			Title:            req.Title,
			Description:      req.Description,
			TargetMarket:     req.TargetMarket,
			KnowledgeSummary: req.KnowledgeSummary,
		})
		if err != nil {
			respondErr(w, err)
			return
		}

		if deps.Quota != nil {
			deps.Quota.Record(r.Context(), userID, usage.MetricAIRequests, 1)
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: result})
	}
}
