package pipeline

import (
	"context"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/chunk"
	"github.com/connexus-ai/ragbox-backend/internal/cluster"
	"github.com/connexus-ai/ragbox-backend/internal/concept"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/repository"
	"github.com/connexus-ai/ragbox-backend/internal/summarize"
)

type fakeExtractor struct{ text string }

func (f *fakeExtractor) Extract(ctx context.Context, filename string, data []byte, docID string) (string, []string, error) {
	return f.text, nil, nil
}

type fakeChunker struct{}

func (fakeChunker) Split(text string, headings []string) (parents, children []chunk.Unsaved) {
	parents = []chunk.Unsaved{{ChunkIndex: 0, Content: "parent section", ContentHash: "p1", ChunkType: model.ChunkTypeParent}}
	idx := 0
	children = []chunk.Unsaved{{ChunkIndex: 1, Content: "child piece", ContentHash: "c1", ChunkType: model.ChunkTypeChild, ParentIndex: &idx}}
	return parents, children
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, bool, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, false, nil
}

type fakeConceptExtractor struct{}

func (fakeConceptExtractor) Extract(ctx context.Context, documentID int64, text string) (*concept.Result, error) {
	return &concept.Result{
		Concepts:         []model.Concept{{Name: "go", Category: model.CategoryLanguage, Confidence: 0.9}},
		SkillLevel:       "intermediate",
		SuggestedCluster: "Go Basics",
	}, nil
}

type fakeClusterer struct{ called bool }

func (f *fakeClusterer) Assign(ctx context.Context, kbID string, a cluster.Assignment) (cluster.Cluster, error) {
	f.called = true
	return cluster.Cluster{ID: 1, Name: a.SuggestedCluster}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, documentID int64, parents []summarize.ParentChunk, conceptNames []string) ([]model.Summary, error) {
	return []model.Summary{{ID: "sum-1", DocumentID: documentID, Level: model.LevelDocument, ShortSummary: "a summary"}}, nil
}

type fakeCommitter struct {
	committed repository.Result
	called    bool
}

func (f *fakeCommitter) Commit(ctx context.Context, res repository.Result) error {
	f.committed = res
	f.called = true
	return nil
}

type fakeStatusUpdater struct{}

func (fakeStatusUpdater) UpdateChunkingStatus(ctx context.Context, docID int64, status model.ChunkingStatus) error {
	return nil
}
func (fakeStatusUpdater) UpdateSummaryStatus(ctx context.Context, docID int64, status model.SummaryStatus) error {
	return nil
}

func TestPipeline_RunCommitsFullResult(t *testing.T) {
	clusterer := &fakeClusterer{}
	committer := &fakeCommitter{}

	p := New(&fakeExtractor{text: "some document text"}, fakeChunker{}, fakeEmbedder{},
		fakeConceptExtractor{}, clusterer, fakeSummarizer{}, committer, fakeStatusUpdater{})

	var progressCalls []int
	doc := model.Document{DocID: 42, KBID: "kb-1", Owner: "user-1"}
	err := p.Run(context.Background(), Input{Document: doc, Filename: "notes.txt"}, func(percent int, message string) {
		progressCalls = append(progressCalls, percent)
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !clusterer.called {
		t.Error("expected clusterer to be called")
	}
	if !committer.called {
		t.Fatal("expected committer to be called")
	}
	if len(committer.committed.Chunks) != 2 {
		t.Errorf("committed %d chunks, want 2 (1 parent + 1 child)", len(committer.committed.Chunks))
	}
	if committer.committed.Document.ChunkingStatus != model.ChunkingDone {
		t.Errorf("ChunkingStatus = %q, want done", committer.committed.Document.ChunkingStatus)
	}
	if committer.committed.Document.SummaryStatus != model.SummaryDone {
		t.Errorf("SummaryStatus = %q, want done", committer.committed.Document.SummaryStatus)
	}

	var child model.Chunk
	for _, c := range committer.committed.Chunks {
		if c.ChunkType == model.ChunkTypeChild {
			child = c
		}
	}
	if child.ParentChunkID == nil {
		t.Fatal("expected child chunk to carry a ParentChunkID")
	}
	if len(child.Embedding) != 3 {
		t.Errorf("child embedding len = %d, want 3", len(child.Embedding))
	}
	if len(progressCalls) == 0 || progressCalls[len(progressCalls)-1] != 100 {
		t.Errorf("expected final progress report of 100, got %v", progressCalls)
	}
}

func TestPipeline_RunRejectsConcurrentDuplicate(t *testing.T) {
	p := New(&fakeExtractor{text: "x"}, fakeChunker{}, fakeEmbedder{}, fakeConceptExtractor{},
		&fakeClusterer{}, fakeSummarizer{}, &fakeCommitter{}, fakeStatusUpdater{})

	p.mu.Lock()
	p.processing[7] = true
	p.mu.Unlock()

	err := p.Run(context.Background(), Input{Document: model.Document{DocID: 7}}, nil)
	if err == nil {
		t.Fatal("expected error for a document already marked processing")
	}
}
