package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// DocumentLister is satisfied by internal/repository.DocumentRepo.
type DocumentLister interface {
	ListByKB(ctx context.Context, kbID string, limit, offset int) ([]model.Document, int, error)
}

// DocumentGetter is satisfied by internal/repository.DocumentRepo.
type DocumentGetter interface {
	GetByID(ctx context.Context, docID int64) (model.Document, error)
}

// DocumentDeleter is satisfied by internal/repository.DocumentRepo.
type DocumentDeleter interface {
	Delete(ctx context.Context, docID int64) error
}

// DocCRUDDeps bundles dependencies for document CRUD handlers.
type DocCRUDDeps struct {
	Lister  DocumentLister
	Getter  DocumentGetter
	Deleter DocumentDeleter
	Cache   CacheInvalidator
}

// CacheInvalidator clears cached results tied to a document's owner/KB
// (§4.N: Document create/delete invalidates all three cache namespaces).
type CacheInvalidator interface {
	InvalidateForDocument(ctx context.Context, owner, kbID string)
}

// ListDocuments handles GET /api/kb/{kbId}/documents.
func ListDocuments(deps DocCRUDDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		kbID := chi.URLParam(r, "kbId")
		if kbID == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "kb id required"})
			return
		}

		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		docs, total, err := deps.Lister.ListByKB(r.Context(), kbID, limit, offset)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to list documents"})
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]interface{}{
			"documents": docs,
			"total":     total,
		}})
	}
}

// GetDocument handles GET /api/documents/{id}.
func GetDocument(deps DocCRUDDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		docID, ok := parseDocID(w, r)
		if !ok {
			return
		}

		doc, err := deps.Getter.GetByID(r.Context(), docID)
		if err != nil {
			respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
			return
		}
		if doc.Owner != userID {
			respondJSON(w, http.StatusForbidden, envelope{Success: false, Error: "access denied"})
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: doc})
	}
}

// DeleteDocument handles DELETE /api/documents/{id}.
func DeleteDocument(deps DocCRUDDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			return
		}

		docID, ok := parseDocID(w, r)
		if !ok {
			return
		}

		doc, err := deps.Getter.GetByID(r.Context(), docID)
		if err != nil || doc.Owner != userID {
			respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
			return
		}

		if err := deps.Deleter.Delete(r.Context(), docID); err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to delete document"})
			return
		}

		if deps.Cache != nil {
			deps.Cache.InvalidateForDocument(r.Context(), doc.Owner, doc.KBID)
		}

		respondJSON(w, http.StatusOK, envelope{Success: true})
	}
}

func parseDocID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid document id"})
		return 0, false
	}
	return id, true
}
