// Package router assembles the HTTP surface for the documents, ingest,
// search, cluster, suggestion, usage, and admin modules behind the
// auth/rate-limit/timeout middleware stack. The HTTP routing surface
// itself is not specified; this package exists to drive the implemented
// modules end to end, the way the teacher's router drives its own.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragbox-backend/internal/handler"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
)

// Dependencies holds everything the router wires into request handlers.
type Dependencies struct {
	DB                 handler.DBPinger
	Authenticator      middleware.Authenticator
	FrontendURL        string
	Version            string
	Metrics            *middleware.Metrics
	MetricsReg         *prometheus.Registry
	InternalAuthSecret string

	Documents handler.DocCRUDDeps
	Ingest    handler.IngestDeps
	Jobs      handler.JobDeps
	Search    handler.SearchDeps
	Clusters  handler.ClusterDeps
	Suggest   handler.SuggestDeps
	Validate  handler.ValidateDeps
	Dupes     handler.DuplicateDeps
	Usage     handler.UsageDeps

	AdminMigrate handler.AdminMigrateDeps

	// GeneralRateLimiter, nil-safe: no limiter means no rate limiting.
	GeneralRateLimiter *middleware.RateLimiter
	SearchRateLimiter  *middleware.RateLimiter

	// ResultCache backs the §4.N read-through caches; nil disables caching.
	ResultCache handler.ResultCache

	// QuotaEnforcer backs the §4.L pre-work quota gate on ingest, search,
	// and suggestion requests; nil disables quota enforcement.
	QuotaEnforcer handler.QuotaEnforcer
}

// internalAuthOnly gates an endpoint behind the X-Internal-Auth header
// alone, for callers (CI, migration jobs) with no user session.
func internalAuthOnly(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Internal-Auth")
		if secret == "" || token != secret {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	}
}

// New builds the Chi router.
func New(deps *Dependencies) *chi.Mux {
	if deps.ResultCache != nil {
		deps.Search.Cache = deps.ResultCache
		deps.Suggest.Cache = deps.ResultCache
		deps.Usage.Cache = deps.ResultCache
	}
	if deps.QuotaEnforcer != nil {
		deps.Ingest.Quota = deps.QuotaEnforcer
		deps.Search.Quota = deps.QuotaEnforcer
		deps.Suggest.Quota = deps.QuotaEnforcer
		deps.Validate.Quota = deps.QuotaEnforcer
	}

	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/api/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Post("/api/admin/migrate", internalAuthOnly(deps.InternalAuthSecret,
		handler.AdminMigrate(deps.AdminMigrate)))

	r.Group(func(r chi.Router) {
		r.Use(middleware.InternalOrAuthenticator(deps.Authenticator, deps.InternalAuthSecret))
		if deps.GeneralRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.GeneralRateLimiter))
		}

		timeout30s := middleware.Timeout(30 * time.Second)

		// Documents
		r.With(timeout30s).Get("/api/kb/{kbId}/documents", handler.ListDocuments(deps.Documents))
		r.With(timeout30s).Get("/api/documents/{id}", handler.GetDocument(deps.Documents))
		r.With(timeout30s).Delete("/api/documents/{id}", handler.DeleteDocument(deps.Documents))

		// Ingest — allocates a document row and enqueues pipeline processing;
		// the handler itself just writes+enqueues, so it keeps the general
		// 30s timeout rather than the teacher's 120s (actual processing
		// happens out of request scope, in cmd/worker).
		r.With(timeout30s).Post("/api/documents", handler.IngestDocument(deps.Ingest))

		// Jobs — status polling / cancellation for async processing (§6).
		r.With(timeout30s).Get("/api/jobs/{id}", handler.GetJobStatus(deps.Jobs))
		r.With(timeout30s).Post("/api/jobs/{id}/cancel", handler.CancelJob(deps.Jobs))

		// Search / RAG — may call the oracle, give it its own rate limit.
		searchMiddleware := []func(http.Handler) http.Handler{middleware.Timeout(60 * time.Second)}
		if deps.SearchRateLimiter != nil {
			searchMiddleware = append(searchMiddleware, middleware.RateLimit(deps.SearchRateLimiter))
		}
		r.With(searchMiddleware...).Get("/api/search", handler.Search(deps.Search))

		// Clusters
		r.With(timeout30s).Get("/api/clusters", handler.ListClusters(deps.Clusters))

		// Build suggestions — oracle call, 60s timeout.
		r.With(middleware.Timeout(60 * time.Second)).Get("/api/suggestions", handler.Suggest(deps.Suggest))

		// Market validation (§4.K supplement) — oracle call, same timeout
		// budget as suggestion generation.
		r.With(middleware.Timeout(60 * time.Second)).Post("/api/suggestions/validate", handler.ValidateIdea(deps.Validate))

		// Duplicate document detection (§4.K supplement) — local TF-IDF
		// scan, no oracle call.
		r.With(timeout30s).Get("/api/duplicates", handler.ListDuplicates(deps.Dupes))

		// Usage
		r.With(timeout30s).Get("/api/usage", handler.GetUsage(deps.Usage))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
