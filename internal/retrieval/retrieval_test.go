package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func TestTFIDFModelScoresRelevantChunkHigher(t *testing.T) {
	m := NewTFIDFModel()
	m.Rebuild([]ChunkText{
		{ChunkID: "a", KBID: "kb1", Content: "the go concurrency model uses goroutines and channels"},
		{ChunkID: "b", KBID: "kb1", Content: "baking bread requires flour water yeast and salt"},
	})

	scores := m.Score("goroutines channels", "kb1", 0.01)
	if scores["a"] <= scores["b"] {
		t.Fatalf("expected chunk a to score higher than b, got a=%v b=%v", scores["a"], scores["b"])
	}
}

func TestTFIDFModelScopesByKB(t *testing.T) {
	m := NewTFIDFModel()
	m.Rebuild([]ChunkText{
		{ChunkID: "a", KBID: "kb1", Content: "golang channels"},
		{ChunkID: "b", KBID: "kb2", Content: "golang channels"},
	})

	scores := m.Score("golang channels", "kb1", 0.01)
	if _, ok := scores["b"]; ok {
		t.Fatal("expected chunk from a different KB to be excluded")
	}
}

type fakeDense struct {
	results []ScoredChunk
	err     error
}

func (f *fakeDense) SimilaritySearch(ctx context.Context, kbID string, queryVec []float32, topK int) ([]ScoredChunk, error) {
	return f.results, f.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return f.vec, f.err
}

type fakeParents struct{}

func (fakeParents) ResolveParent(ctx context.Context, chunk model.Chunk) (model.Chunk, error) {
	if chunk.ChunkType == model.ChunkTypeParent {
		return chunk, nil
	}
	parentID := "parent-of-" + chunk.ID
	return model.Chunk{ID: parentID, DocumentID: chunk.DocumentID, ChunkType: model.ChunkTypeParent, CreatedAt: chunk.CreatedAt}, nil
}

func (fakeParents) DocumentByID(ctx context.Context, docID int64) (model.Document, error) {
	return model.Document{DocID: docID}, nil
}

type fakeChunkSource struct {
	chunks map[string]model.Chunk
}

func (f fakeChunkSource) ChunksByID(ctx context.Context, ids []string) (map[string]model.Chunk, error) {
	out := map[string]model.Chunk{}
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func TestRetrieveFusesAndDeduplicates(t *testing.T) {
	tfidf := NewTFIDFModel()
	tfidf.Rebuild([]ChunkText{
		{ChunkID: "c1", KBID: "kb1", Content: "golang concurrency goroutines channels"},
	})

	now := time.Now()
	dense := &fakeDense{results: []ScoredChunk{
		{Chunk: model.Chunk{ID: "c1", DocumentID: 1, ChunkType: model.ChunkTypeChild, CreatedAt: now}, Score: 0.9},
	}}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	chunkSource := fakeChunkSource{chunks: map[string]model.Chunk{
		"c1": {ID: "c1", DocumentID: 1, ChunkType: model.ChunkTypeChild, CreatedAt: now},
	}}

	r := NewRetriever(tfidf, dense, embedder, fakeParents{})
	result, err := r.Retrieve(context.Background(), "kb1", "goroutines channels", Options{}, chunkSource)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected at least one ranked parent")
	}
	if result.Chunks[0].DocumentID != 1 {
		t.Fatalf("expected document 1, got %d", result.Chunks[0].DocumentID)
	}
}

func TestRetrieveDegradesWhenEmbedderFails(t *testing.T) {
	tfidf := NewTFIDFModel()
	tfidf.Rebuild([]ChunkText{{ChunkID: "c1", KBID: "kb1", Content: "golang concurrency"}})

	embedder := &fakeEmbedder{err: context.DeadlineExceeded}
	chunkSource := fakeChunkSource{chunks: map[string]model.Chunk{
		"c1": {ID: "c1", DocumentID: 1, ChunkType: model.ChunkTypeChild, CreatedAt: time.Now()},
	}}

	r := NewRetriever(tfidf, &fakeDense{}, embedder, fakeParents{})
	result, err := r.Retrieve(context.Background(), "kb1", "golang", Options{}, chunkSource)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result when embedder fails")
	}
}
