package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/cluster"
)

func setupClusterRepo(t *testing.T) (*ClusterRepo, func()) {
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

	return NewClusterRepo(pool), func() { pool.Close() }
}

func TestClusterRepo_CreateListUpdateDelete(t *testing.T) {
	repo, cleanup := setupClusterRepo(t)
	defer cleanup()

	ctx := context.Background()
	kbID := "kb-cluster-crud"

	created, err := repo.Create(ctx, cluster.Cluster{
		KBID:            kbID,
		Name:            "Backend Services",
		PrimaryConcepts: []string{"go", "postgres"},
		SkillLevel:      "intermediate",
		DocIDs:          []int64{1, 2},
		DocCount:        2,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected a non-zero cluster ID")
	}

	list, err := repo.ListByKB(ctx, kbID)
	if err != nil {
		t.Fatalf("ListByKB() error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(list))
	}
	if len(list[0].PrimaryConcepts) != 2 {
		t.Errorf("PrimaryConcepts = %v, want 2 entries", list[0].PrimaryConcepts)
	}

	created.DocCount = 3
	created.DocIDs = append(created.DocIDs, 3)
	if err := repo.Update(ctx, created); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	list, _ = repo.ListByKB(ctx, kbID)
	if list[0].DocCount != 3 {
		t.Errorf("DocCount after update = %d, want 3", list[0].DocCount)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	list, _ = repo.ListByKB(ctx, kbID)
	if len(list) != 0 {
		t.Errorf("expected 0 clusters after delete, got %d", len(list))
	}
}
