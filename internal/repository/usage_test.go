package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

func setupUsageRepo(t *testing.T) (*UsageRepo, func()) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	migrationSQL, err := os.ReadFile("../../migrations/001_initial_schema.up.sql")
	if err != nil {
		pool.Close()
		t.Fatalf("read migration: %v", err)
	}
	for attempt := 0; attempt < 5; attempt++ {
		_, err = pool.Exec(ctx, string(migrationSQL))
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	if err != nil {
		pool.Close()
		t.Fatalf("setup schema after retries: %v", err)
	}

	return NewUsageRepo(pool), func() { pool.Close() }
}

func TestUsageRepo_GetOrCreatePeriodIsIdempotent(t *testing.T) {
	repo, cleanup := setupUsageRepo(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	first, err := repo.GetOrCreatePeriod(ctx, "test-user-usage", start, end)
	if err != nil {
		t.Fatalf("GetOrCreatePeriod() first error: %v", err)
	}
	if first.APICalls != 0 {
		t.Errorf("APICalls = %d, want 0 on first creation", first.APICalls)
	}

	if err := repo.IncrementBy(ctx, "test-user-usage", usage.MetricDocumentsUpload, 1); err != nil {
		t.Fatalf("IncrementBy() error: %v", err)
	}

	second, err := repo.GetOrCreatePeriod(ctx, "test-user-usage", start, end)
	if err != nil {
		t.Fatalf("GetOrCreatePeriod() second error: %v", err)
	}
	if second.DocumentsUploaded != 1 {
		t.Errorf("DocumentsUploaded = %d, want 1", second.DocumentsUploaded)
	}
}

func TestUsageRepo_IncrementByAPICallsRecordsRateEvent(t *testing.T) {
	repo, cleanup := setupUsageRepo(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := repo.IncrementBy(ctx, "test-user-rate", usage.MetricAPICalls, 1); err != nil {
			t.Fatalf("IncrementBy() error: %v", err)
		}
	}

	count, err := repo.RateWindowCount(ctx, "test-user-rate", time.Minute)
	if err != nil {
		t.Fatalf("RateWindowCount() error: %v", err)
	}
	if count != 3 {
		t.Errorf("RateWindowCount = %d, want 3", count)
	}
}

func TestUsageRepo_SubscriptionForDefaultsToFree(t *testing.T) {
	repo, cleanup := setupUsageRepo(t)
	defer cleanup()

	sub, err := repo.SubscriptionFor(context.Background(), "nobody-registered")
	if err != nil {
		t.Fatalf("SubscriptionFor() error: %v", err)
	}
	if sub.Plan != "free" {
		t.Errorf("Plan = %q, want free for an unregistered user", sub.Plan)
	}
}
