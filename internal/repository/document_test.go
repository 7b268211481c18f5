package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func setupDocRepo(t *testing.T) (*DocumentRepo, func()) {
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

	return NewDocumentRepo(pool), func() { pool.Close() }
}

func newTestDoc(t *testing.T, repo *DocumentRepo, kbID string) model.Document {
	t.Helper()
	ctx := context.Background()
	id, err := repo.NextDocID(ctx)
	if err != nil {
		t.Fatalf("NextDocID: %v", err)
	}
	filename := "test.pdf"
	return model.Document{
		DocID:          id,
		KBID:           kbID,
		Owner:          "test-user-doc",
		SourceType:     model.SourceFile,
		Filename:       &filename,
		SizeBytes:      1024,
		SkillLevel:     model.SkillUnknown,
		ChunkingStatus: model.ChunkingPending,
		SummaryStatus:  model.SummaryPending,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func TestDocumentRepo_CreateAndGetByID(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDoc(t, repo, "kb-doc-test")
	vec := model.VectorDocument{DocID: doc.DocID, RawText: "hello world"}

	if err := repo.Create(ctx, doc, vec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.GetByID(ctx, doc.DocID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.DocID != doc.DocID {
		t.Errorf("DocID = %d, want %d", got.DocID, doc.DocID)
	}
	if got.Owner != doc.Owner {
		t.Errorf("Owner = %q, want %q", got.Owner, doc.Owner)
	}
	if got.ChunkingStatus != model.ChunkingPending {
		t.Errorf("ChunkingStatus = %q, want %q", got.ChunkingStatus, model.ChunkingPending)
	}
}

func TestDocumentRepo_ListByKB(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	kbID := "kb-doc-list"
	for i := 0; i < 3; i++ {
		doc := newTestDoc(t, repo, kbID)
		vec := model.VectorDocument{DocID: doc.DocID, RawText: "text"}
		if err := repo.Create(ctx, doc, vec); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	docs, total, err := repo.ListByKB(ctx, kbID, 10, 0)
	if err != nil {
		t.Fatalf("ListByKB() error: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(docs) != 3 {
		t.Errorf("docs count = %d, want 3", len(docs))
	}
}

func TestDocumentRepo_UpdateChunkingStatus(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDoc(t, repo, "kb-doc-status")
	vec := model.VectorDocument{DocID: doc.DocID, RawText: "text"}
	if err := repo.Create(ctx, doc, vec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.UpdateChunkingStatus(ctx, doc.DocID, model.ChunkingDone); err != nil {
		t.Fatalf("UpdateChunkingStatus() error: %v", err)
	}

	got, err := repo.GetByID(ctx, doc.DocID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ChunkingStatus != model.ChunkingDone {
		t.Errorf("ChunkingStatus = %q, want %q", got.ChunkingStatus, model.ChunkingDone)
	}
}

func TestDocumentRepo_UpdateChunkCount(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDoc(t, repo, "kb-doc-count")
	vec := model.VectorDocument{DocID: doc.DocID, RawText: "text"}
	if err := repo.Create(ctx, doc, vec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.UpdateChunkCount(ctx, doc.DocID, 42); err != nil {
		t.Fatalf("UpdateChunkCount() error: %v", err)
	}

	got, err := repo.GetByID(ctx, doc.DocID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ChunkCount != 42 {
		t.Errorf("ChunkCount = %d, want 42", got.ChunkCount)
	}
}

func TestDocumentRepo_Delete(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDoc(t, repo, "kb-doc-delete")
	vec := model.VectorDocument{DocID: doc.DocID, RawText: "text"}
	if err := repo.Create(ctx, doc, vec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.Delete(ctx, doc.DocID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := repo.GetByID(ctx, doc.DocID); err == nil {
		t.Error("expected error fetching deleted document")
	}
}

func TestDocumentRepo_AllRawText(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	kbID := "kb-doc-rawtext"
	doc := newTestDoc(t, repo, kbID)
	vec := model.VectorDocument{DocID: doc.DocID, RawText: "the quick brown fox"}
	if err := repo.Create(ctx, doc, vec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	texts, err := repo.AllRawText(ctx, kbID)
	if err != nil {
		t.Fatalf("AllRawText() error: %v", err)
	}
	if texts[doc.DocID] != "the quick brown fox" {
		t.Errorf("raw text = %q, want %q", texts[doc.DocID], "the quick brown fox")
	}
}
