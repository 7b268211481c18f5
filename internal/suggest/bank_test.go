package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/cluster"
)

var errTest = errors.New("boom")

type fakeClusterLister struct {
	clusters []cluster.Cluster
	err      error
}

func (f *fakeClusterLister) ListByKB(ctx context.Context, kbID string) ([]cluster.Cluster, error) {
	return f.clusters, f.err
}

type fakeConceptCounter struct {
	count int
	err   error
}

func (f *fakeConceptCounter) DistinctCount(ctx context.Context, kbID string) (int, error) {
	return f.count, f.err
}

type fakeRawTextSource struct {
	texts map[int64]string
	err   error
}

func (f *fakeRawTextSource) AllRawText(ctx context.Context, kbID string) (map[int64]string, error) {
	return f.texts, f.err
}

func TestBankBuilder_BuildSummary(t *testing.T) {
	clusters := &fakeClusterLister{clusters: []cluster.Cluster{
		{ID: 1, Name: "Go Basics", DocCount: 3, SkillLevel: "beginner", PrimaryConcepts: []string{"goroutines", "channels"}},
	}}
	concepts := &fakeConceptCounter{count: 7}
	docs := &fakeRawTextSource{texts: map[int64]string{1: "hello", 2: "world!!"}}

	b := NewBankBuilder(clusters, concepts, docs)
	kb, err := b.BuildSummary(context.Background(), "kb-1")
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}

	if kb.KBID != "kb-1" {
		t.Errorf("KBID = %q", kb.KBID)
	}
	if kb.DistinctConcepts != 7 {
		t.Errorf("DistinctConcepts = %d, want 7", kb.DistinctConcepts)
	}
	if kb.DocumentCount != 2 {
		t.Errorf("DocumentCount = %d, want 2", kb.DocumentCount)
	}
	if kb.TotalContentLen != len("hello")+len("world!!") {
		t.Errorf("TotalContentLen = %d", kb.TotalContentLen)
	}
	if len(kb.Clusters) != 1 || kb.Clusters[0].Name != "Go Basics" {
		t.Errorf("Clusters = %+v", kb.Clusters)
	}
}

func TestBankBuilder_PropagatesClusterError(t *testing.T) {
	clusters := &fakeClusterLister{err: errTest}
	b := NewBankBuilder(clusters, &fakeConceptCounter{}, &fakeRawTextSource{})

	if _, err := b.BuildSummary(context.Background(), "kb-1"); err == nil {
		t.Fatal("expected error")
	}
}
