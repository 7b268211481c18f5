package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/connexus-ai/ragbox-backend/internal/archive"
	"github.com/connexus-ai/ragbox-backend/internal/chunk"
	"github.com/connexus-ai/ragbox-backend/internal/cluster"
	"github.com/connexus-ai/ragbox-backend/internal/concept"
	"github.com/connexus-ai/ragbox-backend/internal/config"
	"github.com/connexus-ai/ragbox-backend/internal/embedding"
	"github.com/connexus-ai/ragbox-backend/internal/extract"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/oracle"
	"github.com/connexus-ai/ragbox-backend/internal/pipeline"
	"github.com/connexus-ai/ragbox-backend/internal/queue"
	"github.com/connexus-ai/ragbox-backend/internal/repository"
	"github.com/connexus-ai/ragbox-backend/internal/summarize"
)

// ingestArgs mirrors internal/handler.ingestArgs (unexported, so the job
// payload shape is duplicated here rather than shared) — the contract
// between producer and consumer is the JSON wire shape, not a Go type.
type ingestArgs struct {
	DocID      int64  `json:"docId"`
	Filename   string `json:"filename"`
	SourcePath string `json:"sourcePath"`
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancelBuild := context.WithCancel(context.Background())
	defer cancelBuild()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	oracleClient, err := oracle.NewClient(ctx, oracle.Config{
		Project:        cfg.GCPProject,
		Location:       cfg.VertexAILocation,
		ChatModel:      cfg.VertexAIChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		DocAIProcessor: cfg.DocAIProcessorID,
		ScratchBucket:  cfg.GCSScratchBucket,
	})
	if err != nil {
		return fmt.Errorf("build oracle client: %w", err)
	}
	defer oracleClient.Close()

	documents := repository.NewDocumentRepo(pool)
	jobs := repository.NewJobRepo(pool)
	ingestRepo := repository.NewIngestRepo(pool)
	clusters := repository.NewClusterRepo(pool)

	blobStore := oracle.NewBlobStore(oracleClient, cfg.GCSScratchBucket)
	imageStore := oracle.NewImageStore(oracleClient, cfg.GCSScratchBucket)

	registry := extract.NewRegistry(oracleClient, oracleClient, extract.NewHTTPURLFetcher(), imageStore)
	recursor := archive.NewRecursor(registry)
	extractor := pipeline.NewDocumentExtractor(registry, recursor)

	embeddingSvc := embedding.NewService(oracleClient, embedding.NewLRU(4096), cfg.EmbeddingModel)
	embedder := pipeline.NewServiceEmbedder(embeddingSvc)

	splitter := chunk.NewSplitter()
	var feedback concept.FeedbackStore = concept.NoopFeedbackStore{}
	if os.Getenv("ENABLE_AGENTIC_LEARNING") == "true" {
		feedback = concept.NewInMemoryFeedbackStore(logger)
	}
	conceptExtractor := concept.NewExtractor(oracleClient, feedback)
	clusterEngine := cluster.NewEngine(clusters)
	summarizer := summarize.NewSummarizer(oracleClient)

	pipe := pipeline.New(extractor, splitter, embedder, conceptExtractor, clusterEngine, summarizer, ingestRepo, documents)

	processDocument := func(ctx context.Context, job *model.Job, rawArgs json.RawMessage, report queue.ProgressFunc, cancel queue.CancelFunc) (json.RawMessage, error) {
		var args ingestArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("process_document: decode args: %w", err)
		}

		doc, err := documents.GetByID(ctx, args.DocID)
		if err != nil {
			return nil, fmt.Errorf("process_document: load document %d: %w", args.DocID, err)
		}

		filename := args.Filename
		var rawBytes []byte
		if doc.SourceType == model.SourceURL {
			if doc.SourceURL == nil {
				return nil, fmt.Errorf("process_document: document %d is source=url with no SourceURL", args.DocID)
			}
			filename = pipeline.URLSourceMarker
			rawBytes = []byte(*doc.SourceURL)
		} else {
			rawBytes, err = blobStore.Get(ctx, args.SourcePath)
			if err != nil {
				return nil, fmt.Errorf("process_document: fetch blob %s: %w", args.SourcePath, err)
			}
		}

		if err := pipe.Run(ctx, pipeline.Input{Document: doc, Filename: filename, RawBytes: rawBytes}, pipeline.Progress(report)); err != nil {
			return nil, err
		}

		result, _ := json.Marshal(map[string]interface{}{"documentId": args.DocID})
		return result, nil
	}

	registryOps := queue.NewRegistry()
	registryOps.Register("process_document", processDocument)

	var broker queue.Broker
	if cfg.Environment == "development" {
		broker = queue.NewMemoryBroker(64)
	} else {
		pubsubBroker, err := queue.NewPubSubBroker(ctx, cfg.GCPProject, cfg.PubSubTopic, cfg.PubSubSubscription)
		if err != nil {
			return fmt.Errorf("build pubsub broker: %w", err)
		}
		broker = pubsubBroker
	}

	workerPool := queue.NewPool(jobs, broker, registryOps, workerConcurrency())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runCtx, cancelRun := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("ragbox-worker starting", "concurrency", workerConcurrency(), "env", cfg.Environment)
		errCh <- workerPool.Run(runCtx)
	}()

	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down gracefully", "signal", sig.String())
		cancelRun()
		<-errCh
	case err := <-errCh:
		cancelRun()
		if err != nil {
			return fmt.Errorf("worker pool stopped: %w", err)
		}
	}

	logger.Info("worker stopped")
	return nil
}

// workerConcurrency reads WORKER_CONCURRENCY, defaulting to 4 in-flight
// jobs the way cmd/server's getPort defaults PORT.
func workerConcurrency() int {
	raw := os.Getenv("WORKER_CONCURRENCY")
	if raw == "" {
		return 4
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
