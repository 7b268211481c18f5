package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragbox-backend/internal/cache"
	"github.com/connexus-ai/ragbox-backend/internal/config"
	"github.com/connexus-ai/ragbox-backend/internal/handler"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/oracle"
	"github.com/connexus-ai/ragbox-backend/internal/queue"
	"github.com/connexus-ai/ragbox-backend/internal/rag"
	"github.com/connexus-ai/ragbox-backend/internal/repository"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
	"github.com/connexus-ai/ragbox-backend/internal/router"
	"github.com/connexus-ai/ragbox-backend/internal/suggest"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

const Version = "0.1.0"

// build wires every repository, oracle-backed service, and handler
// dependency the router needs, then assembles the Chi router. Mirrors the
// teacher's thin main() by keeping all of this out of main() itself, just
// with the construction the teacher deferred to internal/service spelled
// out here instead.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*router.Dependencies, func(), error) {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	documents := repository.NewDocumentRepo(pool)
	chunks := repository.NewChunkRepo(pool)
	clusters := repository.NewClusterRepo(pool)
	concepts := repository.NewConceptRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	jobs := repository.NewJobRepo(pool)
	parents := repository.NewParentResolver(chunks, documents)

	oracleClient, err := oracle.NewClient(ctx, oracle.Config{
		Project:        cfg.GCPProject,
		Location:       cfg.VertexAILocation,
		ChatModel:      cfg.VertexAIChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		DocAIProcessor: cfg.DocAIProcessorID,
		ScratchBucket:  cfg.GCSScratchBucket,
	})
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("build oracle client: %w", err)
	}

	// blobStore backs the ingest upload path only; the extraction/chunking/
	// embedding/concept/cluster/summarize pipeline stages run out of
	// request scope in cmd/worker, which builds its own oracle-backed
	// services against the same oracle.Client config.
	blobStore := oracle.NewBlobStore(oracleClient, cfg.GCSScratchBucket)

	tfidf := retrieval.NewTFIDFModel()
	retriever := retrieval.NewRetriever(tfidf, chunks, oracleClient, parents)

	orchestrator := rag.NewOrchestrator(oracleClient, retriever, chunks, log)
	accountant := usage.NewAccountant(usageRepo, log)
	bankBuilder := suggest.NewBankBuilder(clusters, concepts, documents)
	suggester := suggest.NewSuggester(oracleClient)
	marketValidator := suggest.NewMarketValidator(oracleClient)

	var resultCache handler.ResultCache
	if redisCache, err := cache.New(cfg.RedisURL, log); err != nil {
		log.Warn("cache unavailable, continuing without it", "error", err)
	} else {
		resultCache = redisCache
		closers = append(closers, func() { redisCache.Close() })
	}

	var broker queue.Broker
	if cfg.Environment == "development" {
		broker = queue.NewMemoryBroker(64)
	} else {
		pubsubBroker, err := queue.NewPubSubBroker(ctx, cfg.GCPProject, cfg.PubSubTopic, cfg.PubSubSubscription)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("build pubsub broker: %w", err)
		}
		broker = pubsubBroker
	}
	jobQueue := queue.New(jobs, broker)

	authenticator := middleware.NewJWTAuthenticator(cfg.InternalAuthSecret)
	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	generalLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 120, Window: time.Minute, CleanupInterval: 5 * time.Minute,
	})
	searchLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 30, Window: time.Minute, CleanupInterval: 5 * time.Minute,
	})

	runSQL := func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	}

	var cacheInvalidator handler.CacheInvalidator
	if resultCache != nil {
		if c, ok := resultCache.(interface {
			InvalidateForDocument(ctx context.Context, owner, kbID string)
		}); ok {
			cacheInvalidator = c
		}
	}

	blobPutter := handler.BlobPutter(blobStore)

	deps := &router.Dependencies{
		DB:                 pool,
		Authenticator:      authenticator,
		FrontendURL:        cfg.FrontendURL,
		Version:            Version,
		Metrics:            metrics,
		MetricsReg:         metricsReg,
		InternalAuthSecret: cfg.InternalAuthSecret,
		ResultCache:        resultCache,
		QuotaEnforcer:      accountant,
		GeneralRateLimiter: generalLimiter,
		SearchRateLimiter:  searchLimiter,

		Documents: handler.DocCRUDDeps{
			Lister: documents, Getter: documents, Deleter: documents, Cache: cacheInvalidator,
		},
		Ingest:       handler.IngestDeps{Docs: documents, Queue: jobQueue, Blobs: blobPutter},
		Jobs:         handler.JobDeps{Status: jobQueue, Cancel: jobQueue},
		Search:       handler.SearchDeps{Orchestrator: orchestrator},
		Clusters:     handler.ClusterDeps{Clusters: clusters},
		Suggest:      handler.SuggestDeps{Builder: bankBuilder, Suggester: suggester},
		Validate:     handler.ValidateDeps{Validator: marketValidator},
		Dupes:        handler.DuplicateDeps{Documents: documents, Text: documents},
		Usage:        handler.UsageDeps{Period: accountant, Subscription: usageRepo},
		AdminMigrate: handler.AdminMigrateDeps{RunSQL: runSQL, MigrationsDir: "migrations"},
	}

	return deps, closeAll, nil
}

func getPort(cfg *config.Config) string {
	if cfg.Port != 0 {
		return fmt.Sprintf("%d", cfg.Port)
	}
	return "8080"
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancelBuild := context.WithTimeout(context.Background(), 30*time.Second)
	deps, closeAll, err := build(ctx, cfg, logger)
	cancelBuild()
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer closeAll()

	port := getPort(cfg)
	mux := router.New(deps)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ragbox-backend starting", "version", Version, "port", port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
