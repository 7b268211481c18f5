package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/extract"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/queue"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

const maxUploadBytes = 50 << 20 // 50MB request body cap

// DocumentCreator allocates a doc_id and persists the initial Document row
// ahead of async processing.
type DocumentCreator interface {
	NextDocID(ctx context.Context) (int64, error)
	Create(ctx context.Context, doc model.Document, vec model.VectorDocument) error
}

// Enqueuer submits an ingest job and returns its job ID (§4.C). Satisfied
// by *internal/queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, p queue.Payload) (string, error)
}

// BlobPutter persists the raw upload bytes somewhere the worker can fetch
// them back from, keyed by doc_id. Satisfied by internal/oracle.BlobStoreAdapter.
type BlobPutter interface {
	Put(ctx context.Context, docID string, data []byte) (path string, err error)
}

// IngestDeps bundles dependencies for the ingest handler.
type IngestDeps struct {
	Docs  DocumentCreator
	Queue Enqueuer
	Blobs BlobPutter
	Quota QuotaEnforcer
}

// ingestArgs is the job payload consumed by the worker's pipeline handler.
type ingestArgs struct {
	DocID      int64  `json:"docId"`
	Filename   string `json:"filename"`
	SourcePath string `json:"sourcePath"`
}

// IngestDocument handles POST /api/documents?kbId=... — accepts raw bytes
// (file upload, the target URL itself, or pasted text, per §6's three source
// types) and enqueues asynchronous processing, returning 202 Accepted with
// a job id the caller polls per §6's job status protocol.
func IngestDocument(deps IngestDeps) http.HandlerFunc {
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
		sourceType := model.SourceType(r.URL.Query().Get("sourceType"))
		filename := r.URL.Query().Get("filename")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "failed to read request body"})
			return
		}
		if len(body) > maxUploadBytes {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "upload exceeds 50MB limit"})
			return
		}
		if len(body) == 0 {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "empty request body"})
			return
		}

		// url documents carry the target URL as their body; validate it
		// against §6's admission rules (scheme, length, multi-URL,
		// localhost/RFC-1918/link-local) before anything is persisted or
		// handed to the worker's fetcher.
		var validatedURL string
		if sourceType == model.SourceURL {
			validatedURL, err = extract.ValidateURL(string(body))
			if err != nil {
				respondErr(w, err)
				return
			}
		}

		if deps.Quota != nil {
			if err := deps.Quota.Admit(r.Context(), userID, usage.MetricDocumentsUpload); err != nil {
				respondErr(w, err)
				return
			}
		}

		docID, err := deps.Docs.NextDocID(r.Context())
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to allocate document id"})
			return
		}

		now := model.Document{
			DocID: docID, KBID: kbID, Owner: userID, SourceType: sourceType,
			SizeBytes: int64(len(body)), SkillLevel: model.SkillUnknown,
			ChunkingStatus: model.ChunkingPending, SummaryStatus: model.SummaryPending,
		}
		if filename != "" {
			now.Filename = &filename
		}

		// The url source type carries the target URL as its body; the
		// worker fetches the page itself, so there's nothing to persist
		// to blob storage. Every other source type persists its raw
		// bytes so the worker can read them back by doc_id.
		var sourcePath string
		if sourceType == model.SourceURL {
			now.SourceURL = &validatedURL
		} else {
			path, err := deps.Blobs.Put(r.Context(), strconv.FormatInt(docID, 10), body)
			if err != nil {
				respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to store upload"})
				return
			}
			sourcePath = path
		}

		if err := deps.Docs.Create(r.Context(), now, model.VectorDocument{DocID: docID}); err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to create document"})
			return
		}

		args, _ := json.Marshal(ingestArgs{DocID: docID, Filename: filename, SourcePath: sourcePath})
		jobID, err := deps.Queue.Enqueue(r.Context(), queue.Payload{
			Task: "process_document", Owner: userID, Args: args,
		})
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to enqueue processing job"})
			return
		}

		if deps.Quota != nil {
			deps.Quota.Record(r.Context(), userID, usage.MetricDocumentsUpload, 1)
		}

		respondJSON(w, http.StatusAccepted, envelope{Success: true, Data: map[string]interface{}{
			"documentId": docID,
			"jobId":      jobID,
			"state":      "pending",
		}})
	}
}
