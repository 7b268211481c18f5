package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func setupSummaryRepo(t *testing.T) (*SummaryRepo, *DocumentRepo, func()) {
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

	return NewSummaryRepo(pool), NewDocumentRepo(pool), func() { pool.Close() }
}

func TestSummaryRepo_BulkInsertAndFetch(t *testing.T) {
	repo, docRepo, cleanup := setupSummaryRepo(t)
	defer cleanup()

	ctx := context.Background()
	kbID := "kb-summary-forest"
	docID, err := docRepo.NextDocID(ctx)
	if err != nil {
		t.Fatalf("NextDocID: %v", err)
	}
	doc := model.Document{DocID: docID, KBID: kbID, Owner: "test-user", SourceType: model.SourceText,
		SkillLevel: model.SkillUnknown, ChunkingStatus: model.ChunkingPending, SummaryStatus: model.SummaryPending,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := docRepo.Create(ctx, doc, model.VectorDocument{DocID: docID, RawText: "text"}); err != nil {
		t.Fatalf("create doc: %v", err)
	}

	docSummaryID := uuid.New().String()
	summaries := []model.Summary{
		{
			ID: docSummaryID, DocumentID: docID, Level: model.LevelDocument,
			ShortSummary: "a document about go services", KeyConcepts: []string{"go"},
			TechStack: []string{"postgres"}, SkillProfile: model.SkillIntermediate,
		},
	}
	if err := repo.BulkInsert(ctx, summaries); err != nil {
		t.Fatalf("BulkInsert() error: %v", err)
	}

	got, err := repo.DocumentSummary(ctx, docID)
	if err != nil {
		t.Fatalf("DocumentSummary() error: %v", err)
	}
	if got.ID != docSummaryID {
		t.Errorf("ID = %q, want %q", got.ID, docSummaryID)
	}
	if len(got.KeyConcepts) != 1 || got.KeyConcepts[0] != "go" {
		t.Errorf("KeyConcepts = %v, want [go]", got.KeyConcepts)
	}

	list, err := repo.ListByDocument(ctx, docID)
	if err != nil {
		t.Fatalf("ListByDocument() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 summary, got %d", len(list))
	}
}
