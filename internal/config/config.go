package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port                int
	Environment         string
	DatabaseURL         string
	DatabaseMaxConns    int
	RedisURL            string
	GCPProject          string
	GCPRegion           string
	VertexAILocation    string
	VertexAIChatModel   string
	EmbeddingModel      string
	EmbeddingDimensions int
	DocAIProcessorID    string
	DocAILocation       string
	GCSScratchBucket    string
	PubSubTopic         string
	PubSubSubscription  string
	FrontendURL         string
	InternalAuthSecret  string
}

// Load reads configuration from environment variables. Required variables
// (DATABASE_URL, GOOGLE_CLOUD_PROJECT) cause an error if missing; optional
// variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:                envInt("PORT", 8080),
		Environment:         envStr("ENVIRONMENT", "development"),
		DatabaseURL:         dbURL,
		DatabaseMaxConns:    envInt("DATABASE_MAX_CONNS", 25),
		RedisURL:            envStr("REDIS_URL", "redis://localhost:6379/0"),
		GCPProject:          gcpProject,
		GCPRegion:           envStr("GCP_REGION", "us-east4"),
		VertexAILocation:    envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIChatModel:   envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingModel:      envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),
		DocAIProcessorID:    envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocAILocation:       envStr("DOCUMENT_AI_LOCATION", "us"),
		GCSScratchBucket:    envStr("GCS_SCRATCH_BUCKET", ""),
		PubSubTopic:         envStr("PUBSUB_TOPIC", "ragbox-jobs"),
		PubSubSubscription:  envStr("PUBSUB_SUBSCRIPTION", "ragbox-jobs-worker"),
		FrontendURL:         envStr("FRONTEND_URL", "http://localhost:3000"),
		InternalAuthSecret:  envStr("INTERNAL_AUTH_SECRET", ""),
	}

	// Internal auth secret is required outside development so the
	// service-to-service bypass (internal/middleware.InternalOrAuthenticator)
	// can't silently no-op in production.
	if cfg.Environment != "development" && cfg.InternalAuthSecret == "" {
		return nil, fmt.Errorf("config.Load: INTERNAL_AUTH_SECRET is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
