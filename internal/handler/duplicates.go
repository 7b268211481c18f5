package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/dedupe"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// DocumentsByKBLister is satisfied by *internal/repository.DocumentRepo.
type DocumentsByKBLister interface {
	ListByKB(ctx context.Context, kbID string, limit, offset int) ([]model.Document, int, error)
}

// RawTextByKB is satisfied by *internal/repository.DocumentRepo.
type RawTextByKB interface {
	AllRawText(ctx context.Context, kbID string) (map[int64]string, error)
}

// DuplicateDeps bundles dependencies for the duplicate-document detection
// handler.
type DuplicateDeps struct {
	Documents DocumentsByKBLister
	Text      RawTextByKB
}

const duplicateScanLimit = 500

// ListDuplicates handles GET /api/duplicates?kbId=... (§4.K supplement):
// groups the caller's own documents in the KB by near-duplicate text
// content, so a user can spot and merge accidental re-ingests before they
// skew cluster and suggestion quality.
func ListDuplicates(deps DuplicateDeps) http.HandlerFunc {
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

		threshold := dedupe.DefaultSimilarityThreshold
		if raw := r.URL.Query().Get("threshold"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 1 {
				threshold = v
			}
		}

		docs, _, err := deps.Documents.ListByKB(r.Context(), kbID, duplicateScanLimit, 0)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to list documents"})
			return
		}

		texts, err := deps.Text.AllRawText(r.Context(), kbID)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to load document text"})
			return
		}

		var owned []dedupe.DocumentText
		for _, d := range docs {
			if d.Owner != userID {
				continue
			}
			owned = append(owned, dedupe.DocumentText{DocID: d.DocID, Text: texts[d.DocID]})
		}

		groups := dedupe.FindDuplicates(owned, threshold, duplicateScanLimit)
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: groups})
	}
}
